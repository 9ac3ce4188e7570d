// Package logging wraps log/slog for the bridge.
//
// Every record carries the service name and version, so log aggregators
// can tell bridge instances apart. Output format and level come from
// the logging section of config.yaml:
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json for machines, text for terminals
//	  output: stdout   # stdout or stderr
//
// Components take child loggers via With:
//
//	log := logging.New(cfg.Logging, version)
//	gwLog := log.With("component", "gateway")
//
// Do not log credentials or MQTT passwords; config.MQTTConfig.String
// already masks them for the startup log line.
package logging
