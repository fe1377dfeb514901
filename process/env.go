package process

import (
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kbukum/monitkit/errors"
)

// SetEnv sets name to value in the child's environment, replacing any
// existing entry for name.
func (c *Command) SetEnv(name, value string) {
	c.removeEnv(name)
	c.env = append(c.env, name+"="+value)
}

// SetEnvString applies a list of "name=value" pairs separated by ';'.
// Whitespace around names and values is trimmed. A fragment without '='
// is ignored wherever it appears and does not affect its neighbours.
func (c *Command) SetEnvString(env string) {
	for _, pair := range strings.Split(env, ";") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		c.SetEnv(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

// SetEnvFile applies every variable of a dotenv file, in name order.
func (c *Command) SetEnvFile(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return errors.Configuration("Cannot read environment file '%s'", path).WithCause(err)
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.SetEnv(name, vars[name])
	}
	return nil
}

// GetEnv returns the value of the first entry for name.
func (c *Command) GetEnv(name string) (string, bool) {
	if i := c.findEnv(name); i >= 0 {
		return c.env[i][len(name)+1:], true
	}
	return "", false
}

// Env returns a copy of the environment entries in insertion order.
func (c *Command) Env() []string {
	return append([]string(nil), c.env...)
}

func (c *Command) findEnv(name string) int {
	prefix := name + "="
	for i, e := range c.env {
		if strings.HasPrefix(e, prefix) {
			return i
		}
	}
	return -1
}

func (c *Command) removeEnv(name string) {
	prefix := name + "="
	kept := c.env[:0]
	for _, e := range c.env {
		if !strings.HasPrefix(e, prefix) {
			kept = append(kept, e)
		}
	}
	c.env = kept
}
