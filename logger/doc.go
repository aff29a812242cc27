// Package logger provides structured logging for bryce clients on top of
// zerolog.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("my-app").WithComponent("httpclient")
//	log.Debug("request sent", logger.Fields("method", "GET", "url", u))
package logger
