// Package logging provides structured logging for Gray Logic Node.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same format and default fields.
//
// # Features
//
//   - JSON output for deployed nodes (machine-parsable)
//   - Text output for bench work (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("mqtt connected", "broker", addr)
//	logger.Warn("connect attempt failed", "attempt", n)
//
// Never log WiFi passwords, MQTT credentials or InfluxDB tokens.
package logging
