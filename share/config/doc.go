// Package config loads the pinshare server settings.
//
// Settings come from three layers, later ones winning:
//   - struct tag defaults (10 minute sessions, 30 second sweeps, port 3000)
//   - a YAML file, config.yaml in the working directory or ./configs,
//     or the file passed with --config
//   - PINSHARE_* environment variables, e.g. PINSHARE_SESSION_TTL=5m
//
// Command line flags handled in main override the result once more.
//
// Example file:
//
//	server:
//	  port: 3000
//	  static_dir: public
//	session:
//	  ttl: 10m
//	  sweep_interval: 30s
//	admin:
//	  enabled: true
package config
