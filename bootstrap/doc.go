// Package bootstrap builds a ready-to-use client application from
// configuration.
//
// Load reads a Config from config.yml and .env files; New opens the secret
// store backend, restores the persisted credential, builds the security
// policy and telemetry, and registers everything, the HTTP client
// included, as components with startup/shutdown hooks.
//
// # Quick Start
//
//	cfg, err := bootstrap.Load("my-app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.New(ctx, cfg, bootstrap.WithRefreshHandler(handler))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := httpclient.Get[Profile](app.Client(), ctx, httpclient.NewRoute("me"))
//	    return err
//	})
package bootstrap
