// Package config loads the agent configuration.
//
// LoadConfig reads a YAML file through Viper, applies a dotenv file and
// binds environment variables on top, then decodes the result into any
// mapstructure-tagged struct. AgentConfig is the struct used by monitexec:
//
//	var cfg config.AgentConfig
//	if err := config.LoadConfig("monitexec", &cfg, config.WithConfigFile(path)); err != nil {
//		return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// Environment variables carrying the agent prefix map onto nested keys by
// splitting on underscores, so MONITEXEC_LOGGING_LEVEL=debug sets
// logging.level.
package config
