// Package logger provides structured logging for the agent using zerolog.
//
// It supports JSON and console output, log level configuration and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.Get("command")
//	log.Info("spawned", logger.Fields(logger.FieldPID, pid))
package logger
