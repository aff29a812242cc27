// Package version reports the build version, set at compile time via
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/bryce/version.Version=1.0.0"
package version
