// Package logging gives Shopdesk Core one structured logger, built on
// log/slog: JSON for production, text for development, level filtering,
// and service/version fields stamped on every record.
//
// Configured via the logging block in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//
// Never log secrets, tokens, passwords, or API keys; redact to a prefix
// when identification is needed:
//
//	logger.Info("API key used", "key_prefix", key[:8]+"...")
package logging
