// Package logging provides structured logging for vantage-sync.
//
// It wraps log/slog with the service defaults used across the binary:
// JSON or text output, level filtering, and "service", "version" and
// "station" fields on every entry. Each pipeline stage logs through
// Component, so a line reads like
//
//	level=WARN msg="write failed" service=vantagesync version=1.2.0 station=garden component=syncer
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, none
//
// Never log store tokens or passwords.
package logging
