package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/flosch/pongo2/v4"
	yaml "gopkg.in/yaml.v2"
)

// RetryDelay is the pause between two attempts of Retry.
var RetryDelay = 100 * time.Millisecond

// ConfigError is returned when a definition cannot be read, parsed or validated.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("Invalid definition: %v", e.Err)
	}

	return fmt.Sprintf("Invalid definition %q: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsTemplate reports whether s contains pongo2 tags.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// MaxRenderDepth is the number of passes RenderTemplate makes over templates
// which render to further templates.
const MaxRenderDepth = 10

// RenderTemplate renders a pongo2 template. The serialized form of iface is
// used as context.
func RenderTemplate(template string, iface any) (string, error) {
	return renderTemplate(template, iface, 1)
}

func renderTemplate(template string, iface any, depth int) (string, error) {
	if depth > MaxRenderDepth {
		return "", fmt.Errorf("Template nesting exceeds %d levels: %q", MaxRenderDepth, template)
	}

	// Serialize interface
	data, err := yaml.Marshal(iface)
	if err != nil {
		return "", err
	}

	// Decode document and write it to a pongo2 Context
	var ctx pongo2.Context

	err = yaml.Unmarshal(data, &ctx)
	if err != nil {
		return "", fmt.Errorf("Failed unmarshalling data: %w", err)
	}

	// Load template from string
	tpl, err := pongo2.FromString("{% autoescape off %}" + template + "{% endautoescape %}")
	if err != nil {
		return "", err
	}

	ret, err := tpl.Execute(ctx)
	if err != nil {
		return ret, err
	}

	// Variables may themselves contain templates
	if IsTemplate(ret) && ret != template {
		return renderTemplate(ret, iface, depth+1)
	}

	return ret, nil
}

// RenderDefinition renders the device of the definition. Entry values are
// payload and are never rendered.
func RenderDefinition(def *Definition) error {
	if !IsTemplate(def.Device) {
		return nil
	}

	device, err := RenderTemplate(def.Device, def)
	if err != nil {
		return fmt.Errorf("Failed to render device: %w", err)
	}

	def.Device = device

	return nil
}

// Retry calls f up to attempts times, until it succeeds. The last error is
// returned.
func Retry(f func() error, attempts uint) error {
	var err error

	if attempts == 0 {
		attempts = 1
	}

	for i := uint(0); i < attempts; i++ {
		if i > 0 {
			time.Sleep(RetryDelay)
		}

		err = f()
		if err == nil {
			break
		}
	}

	return err
}
