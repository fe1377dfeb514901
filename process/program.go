package process

import (
	"strings"
	"time"

	"github.com/kbukum/monitkit/validation"
)

// Program is the configuration form of a Command.
type Program struct {
	// Name identifies the program in logs.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Path is the absolute path of the executable.
	Path string `yaml:"path" mapstructure:"path" validate:"required,startswith=/"`
	// Args follow Path on the command line.
	Args []string `yaml:"args,omitempty" mapstructure:"args"`
	// Env holds "name=value" entries applied on top of the default PATH.
	Env []string `yaml:"env,omitempty" mapstructure:"env"`
	// EnvString is a "name=value;name=value" list applied after Env.
	EnvString string `yaml:"env_string,omitempty" mapstructure:"env_string"`
	// EnvFile is a dotenv file applied last.
	EnvFile string `yaml:"env_file,omitempty" mapstructure:"env_file"`
	// Dir is the working directory; empty means the agent's.
	Dir string `yaml:"dir,omitempty" mapstructure:"dir"`
	// UID and GID select the credentials; 0 means the agent's.
	UID uint32 `yaml:"uid,omitempty" mapstructure:"uid"`
	GID uint32 `yaml:"gid,omitempty" mapstructure:"gid"`
	// Timeout bounds a Run, in seconds. Zero means no limit.
	Timeout int `yaml:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"`
	// Stdin is written to the program's stdin on Run.
	Stdin string `yaml:"stdin,omitempty" mapstructure:"stdin"`
}

// Validate checks the tags and the filesystem.
func (p Program) Validate() error {
	if err := validation.Validate(p); err != nil {
		return err
	}
	return validation.New().
		Executable("path", p.Path).
		Directory("dir", p.Dir).
		EnvEntries("env", p.Env).
		Validate()
}

// Build returns a Command for p.
func (p Program) Build() (*Command, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := New()
	if err := c.SetCommand(p.Path, p.Args...); err != nil {
		return nil, err
	}
	for _, entry := range p.Env {
		name, value, _ := strings.Cut(entry, "=")
		c.SetEnv(name, value)
	}
	if p.EnvString != "" {
		c.SetEnvString(p.EnvString)
	}
	if p.EnvFile != "" {
		if err := c.SetEnvFile(p.EnvFile); err != nil {
			return nil, err
		}
	}
	if err := c.SetDir(p.Dir); err != nil {
		return nil, err
	}
	c.SetUid(p.UID)
	c.SetGid(p.GID)
	return c, nil
}

// runTimeout returns Timeout as a duration.
func (p Program) runTimeout() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}
