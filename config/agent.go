package config

import (
	"fmt"

	"github.com/kbukum/monitkit/errors"
	"github.com/kbukum/monitkit/logger"
	"github.com/kbukum/monitkit/observability"
	"github.com/kbukum/monitkit/process"
	"github.com/kbukum/monitkit/validation"
)

// AgentConfig is the configuration of an agent that runs programs.
type AgentConfig struct {
	Name        string                     `yaml:"name" mapstructure:"name"`
	Environment string                     `yaml:"environment" mapstructure:"environment"`
	Version     string                     `yaml:"version" mapstructure:"version"`
	Debug       bool                       `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config              `yaml:"logging" mapstructure:"logging"`
	Metrics     observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Tracing     observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Runner      process.Config             `yaml:"runner" mapstructure:"runner"`
	Programs    []process.Program          `yaml:"programs" mapstructure:"programs" validate:"dive"`
}

// ApplyDefaults fills in unset fields.
func (c *AgentConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	c.Logging.ApplyDefaults()
	if c.Debug && c.Logging.Level == "info" {
		c.Logging.Level = "debug"
	}
	c.Metrics.ApplyDefaults(c.Name)
	if c.Metrics.ServiceVersion == "dev" {
		c.Metrics.ServiceVersion = c.Version
	}
	c.Tracing.ApplyDefaults(c.Name)
	if c.Tracing.ServiceVersion == "dev" {
		c.Tracing.ServiceVersion = c.Version
	}
	if c.Runner.Name == "" {
		c.Runner.Name = c.Name
	}
	if c.Runner.GracePeriod == 0 {
		c.Runner.GracePeriod = process.DefaultGracePeriod
	}
}

// Validate checks the configuration, programs included.
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return errors.Configuration("config.name is required")
	}
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return errors.Configuration("config.environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Configuration("config.logging: %v", err).WithCause(err)
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Programs))
	for i, p := range c.Programs {
		if seen[p.Name] {
			return errors.Configuration("config.programs[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return errors.Configuration("config.programs[%d] (%s): %v", i, p.Name, err).WithCause(err)
		}
	}
	return nil
}

// Program returns the program called name.
func (c *AgentConfig) Program(name string) (process.Program, error) {
	for _, p := range c.Programs {
		if p.Name == name {
			return p, nil
		}
	}
	return process.Program{}, errors.NotFound("program", name)
}

// ProgramNames lists the configured programs in file order.
func (c *AgentConfig) ProgramNames() []string {
	names := make([]string, len(c.Programs))
	for i, p := range c.Programs {
		names[i] = p.Name
	}
	return names
}

// String summarizes the configuration for logs.
func (c *AgentConfig) String() string {
	return fmt.Sprintf("%s (%s, %d programs)", c.Name, c.Environment, len(c.Programs))
}
