// Package config loads application configuration with Viper.
//
// Load looks for config.yml in ./cmd/<name>, ./config, the working directory
// and the user config directory, applies a .env file through godotenv, then
// lets environment variables override any key:
//
//	var cfg MyConfig
//	err := config.Load("my-app", &cfg, config.WithEnvPrefix("MYAPP"))
//
// With the prefix MYAPP, MYAPP_CLIENT_BASE_URL sets client.base_url.
package config
