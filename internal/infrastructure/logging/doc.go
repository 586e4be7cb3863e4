// Package logging configures log/slog for the daemon.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Every record carries service and version. Components add their own name:
//
//	log := logging.New(cfg.Logging, version).With("component", "controller")
//	log.Warn("refresh failed", "query", "QPIGS", "error", err)
//
// Attributes named password, token or public_key are redacted. The setup
// code is logged on purpose: it is the pairing instruction for the operator.
package logging
