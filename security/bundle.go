package security

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadBundle reads certificates from a file or from every certificate file
// (.pem, .crt, .cer, .der) in a directory. PEM files may hold several
// certificates; .cer and .der files may be DER or PEM.
func LoadBundle(path string) ([]*x509.Certificate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("security: bundle %s: %w", path, err)
	}
	if !info.IsDir() {
		return loadCertificateFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".pem", ".crt", ".cer", ".der":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("security: bundle %s: %w", path, err)
	}
	sort.Strings(files)

	var certs []*x509.Certificate
	for _, f := range files {
		c, err := loadCertificateFile(f)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c...)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("security: bundle %s contains no certificates", path)
	}
	return certs, nil
}

// LoadBundles concatenates LoadBundle over several paths.
func LoadBundles(paths ...string) ([]*x509.Certificate, error) {
	var all []*x509.Certificate
	for _, p := range paths {
		certs, err := LoadBundle(p)
		if err != nil {
			return nil, err
		}
		all = append(all, certs...)
	}
	return all, nil
}

func loadCertificateFile(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security: read %s: %w", path, err)
	}
	certs, err := parseCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("security: parse %s: %w", path, err)
	}
	return certs, nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if len(certs) > 0 {
		return certs, nil
	}
	// not PEM: try raw DER
	c, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("no certificate found: %w", err)
	}
	return []*x509.Certificate{c}, nil
}
