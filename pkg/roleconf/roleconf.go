package roleconf

import (
	"fmt"
	"strconv"
	"strings"
)

// RoleConfig is an insertion-ordered key/value mapping rendered as the
// configuration file of a FedTree binary.
type RoleConfig struct {
	keys   []string
	values map[string]string
}

func New() RoleConfig {
	return RoleConfig{values: make(map[string]string)}
}

// Set stores value under key. An existing key keeps its position.
func (c *RoleConfig) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = format(value)
}

func (c RoleConfig) Get(key string) (string, bool) {
	v, ok := c.values[key]

	return v, ok
}

func (c RoleConfig) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c RoleConfig) Len() int {
	return len(c.keys)
}

func (c RoleConfig) Equal(o RoleConfig) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for i, k := range c.keys {
		if o.keys[i] != k || o.values[k] != c.values[k] {
			return false
		}
	}

	return true
}

// Render returns one key=value line per entry.
func (c RoleConfig) Render() string {
	var sb strings.Builder
	for _, k := range c.keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(c.values[k])
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Parse reads the output of Render.
func Parse(content string) (RoleConfig, error) {
	c := New()
	for i, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			return RoleConfig{}, fmt.Errorf("line %d: expected key=value, got %q", i+1, line)
		}
		if _, dup := c.values[key]; dup {
			return RoleConfig{}, fmt.Errorf("line %d: duplicate key %q", i+1, key)
		}
		c.Set(key, value)
	}

	return c, nil
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.Contains(s, ".") {
		return s
	}

	return s + ".0"
}
