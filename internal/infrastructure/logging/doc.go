// Package logging provides structured logging for a Gray Logic node.
//
// It wraps log/slog with JSON output for production and text output for a
// bench terminal. Every entry carries service and version fields.
//
// Configuration in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	sessionLog := logger.With("component", "session")
//
// Never log the Wi-Fi passphrase, MQTT password or JWT secret.
package logging
