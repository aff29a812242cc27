package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kbukum/bryce/component"
	"github.com/kbukum/bryce/encryption"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/secretstore"
	"github.com/kbukum/bryce/secretstore/redis"
)

// openSecretStore builds the configured backend, sealing it when an
// encryption key is set. The returned closer is nil when there is nothing
// to release.
func openSecretStore(cfg SecretStoreConfig, name string, injected secretstore.Store, log *logger.Logger) (secretstore.Store, io.Closer, error) {
	var (
		store  secretstore.Store
		closer io.Closer
	)
	switch {
	case injected != nil:
		store = injected
	case cfg.Type == StoreFile:
		dir := cfg.Path
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, nil, fmt.Errorf("secret store: %w", err)
			}
			dir = filepath.Join(base, name, "secrets")
		}
		f, err := secretstore.NewFile(dir)
		if err != nil {
			return nil, nil, err
		}
		store = f
	case cfg.Type == StoreRedis:
		r, err := redis.New(cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		store, closer = r, r
	default:
		store = secretstore.NewMemory()
	}

	if cfg.EncryptionKey != "" {
		sealed, err := secretstore.Seal(store, cfg.EncryptionKey, encryption.WithAlgorithm(encryption.Algorithm(cfg.Algorithm)))
		if err != nil {
			if closer != nil {
				_ = closer.Close()
			}
			return nil, nil, err
		}
		store = sealed
	}
	return store, closer, nil
}

// storeComponent reports the backend's health and closes it on stop.
func storeComponent(kind string, store secretstore.Store, closer io.Closer) component.Component {
	return &component.Funcs{
		ComponentName: "secret-store",
		StopFunc: func(context.Context) error {
			if closer == nil {
				return nil
			}
			return closer.Close()
		},
		HealthFunc: func(ctx context.Context) error {
			if p, ok := store.(secretstore.Pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		},
		Description: component.Description{Name: "secret-store", Type: "secret-store", Details: kind},
	}
}
