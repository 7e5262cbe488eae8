package shared

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ioctiller/ioctiller/buffer"
)

// Supported input buffer entry types.
const (
	EntryTypeU8       = "u8"
	EntryTypeU16      = "u16"
	EntryTypeU32      = "u32"
	EntryTypeU64      = "u64"
	EntryTypeString8  = "string8"
	EntryTypeString16 = "string16"
	EntryTypeFill     = "fill"
)

var entryTypes = []string{
	EntryTypeU8,
	EntryTypeU16,
	EntryTypeU32,
	EntryTypeU64,
	EntryTypeString8,
	EntryTypeString16,
	EntryTypeFill,
}

// A DefinitionEntry describes a portion of content placed in an input buffer.
type DefinitionEntry struct {
	Offset int    `yaml:"offset" toml:"offset"`
	Type   string `yaml:"type" toml:"type"`

	// Value is either an integer, or a string. Integers may also be given as
	// strings with a base prefix, e.g. "0xDEADBEEFCAFEBABE".
	Value  any `yaml:"value" toml:"value"`
	Length int `yaml:"length,omitempty" toml:"length,omitempty"`
}

// A DefinitionIoctl represents a single IOCTL.
type DefinitionIoctl struct {
	Name               string            `yaml:"name" toml:"name"`
	Code               uint32            `yaml:"code" toml:"code"`
	Overlapped         bool              `yaml:"overlapped,omitempty" toml:"overlapped,omitempty"`
	InputBufferSize    int               `yaml:"input_buffer_size" toml:"input_buffer_size"`
	OutputBufferSize   int               `yaml:"output_buffer_size" toml:"output_buffer_size"`
	InputBufferContent []DefinitionEntry `yaml:"input_buffer_content,omitempty" toml:"input_buffer_content,omitempty"`
}

// A Definition is the catalog of IOCTLs for a single device.
type Definition struct {
	Device    string            `yaml:"device" toml:"device"`
	Variables map[string]string `yaml:"variables,omitempty" toml:"variables,omitempty"`
	Ioctls    []DefinitionIoctl `yaml:"ioctls" toml:"ioctls"`
}

// SetValue overrides a value of the definition. Supported keys are "device"
// and "variables.<name>".
func (d *Definition) SetValue(key string, value string) error {
	if key == "device" {
		d.Device = value
		return nil
	}

	name, ok := strings.CutPrefix(key, "variables.")
	if !ok || name == "" {
		return fmt.Errorf("Unknown key %q", key)
	}

	if d.Variables == nil {
		d.Variables = map[string]string{}
	}

	d.Variables[name] = value

	return nil
}

// SetDefaults normalizes the definition.
func (d *Definition) SetDefaults() {
	for i := range d.Ioctls {
		for j := range d.Ioctls[i].InputBufferContent {
			entry := &d.Ioctls[i].InputBufferContent[j]
			entry.Type = strings.ToLower(strings.TrimSpace(entry.Type))
		}
	}
}

// Validate validates the Definition.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Device) == "" {
		return fmt.Errorf("device may not be empty")
	}

	if len(d.Ioctls) == 0 {
		return fmt.Errorf("ioctls may not be empty")
	}

	names := map[string]bool{}

	for _, ioctl := range d.Ioctls {
		if strings.TrimSpace(ioctl.Name) == "" {
			return fmt.Errorf("ioctls.*.name may not be empty")
		}

		if names[ioctl.Name] {
			return fmt.Errorf("ioctls.*.name must be unique, %q is defined more than once", ioctl.Name)
		}

		names[ioctl.Name] = true

		if ioctl.InputBufferSize < 0 {
			return fmt.Errorf("ioctls.%s.input_buffer_size may not be negative", ioctl.Name)
		}

		if ioctl.OutputBufferSize < 0 {
			return fmt.Errorf("ioctls.%s.output_buffer_size may not be negative", ioctl.Name)
		}

		for i, entry := range ioctl.InputBufferContent {
			if !slices.Contains(entryTypes, entry.Type) {
				return fmt.Errorf("ioctls.%s.input_buffer_content.*.type must be one of %v", ioctl.Name, entryTypes)
			}

			field, err := entry.Field()
			if err != nil {
				return fmt.Errorf("ioctls.%s.input_buffer_content.%d: %w", ioctl.Name, i, err)
			}

			err = buffer.CheckBounds(field.Offset, field.Value.Size(), ioctl.InputBufferSize)
			if err != nil {
				return fmt.Errorf("ioctls.%s.input_buffer_content.%d: %w", ioctl.Name, i, err)
			}
		}
	}

	return nil
}

// Ioctl returns the IOCTL with the given name.
func (d *Definition) Ioctl(name string) (DefinitionIoctl, bool) {
	for _, ioctl := range d.Ioctls {
		if ioctl.Name == name {
			return ioctl, true
		}
	}

	return DefinitionIoctl{}, false
}

// Requests returns a request descriptor for each IOCTL, in definition order.
func (d *Definition) Requests() ([]Request, error) {
	requests := make([]Request, 0, len(d.Ioctls))

	for _, ioctl := range d.Ioctls {
		req, err := ioctl.Request()
		if err != nil {
			return nil, err
		}

		requests = append(requests, req)
	}

	return requests, nil
}

// Request converts the IOCTL into a request descriptor.
func (i DefinitionIoctl) Request() (Request, error) {
	fields := make([]buffer.Field, 0, len(i.InputBufferContent))

	for n, entry := range i.InputBufferContent {
		field, err := entry.Field()
		if err != nil {
			return Request{}, fmt.Errorf("Invalid entry %d of %q: %w", n, i.Name, err)
		}

		fields = append(fields, field)
	}

	return NewRequest(i.Name, i.Code, i.InputBufferSize, i.OutputBufferSize, i.Overlapped, fields...), nil
}

// Field converts the entry into a typed buffer field.
func (e DefinitionEntry) Field() (buffer.Field, error) {
	if e.Offset < 0 {
		return buffer.Field{}, fmt.Errorf("offset may not be negative")
	}

	field := buffer.Field{Offset: e.Offset}

	switch strings.ToLower(e.Type) {
	case EntryTypeU8:
		v, err := uintValue(e.Value, 8)
		if err != nil {
			return buffer.Field{}, err
		}

		field.Value = buffer.U8(v)
	case EntryTypeU16:
		v, err := uintValue(e.Value, 16)
		if err != nil {
			return buffer.Field{}, err
		}

		field.Value = buffer.U16(v)
	case EntryTypeU32:
		v, err := uintValue(e.Value, 32)
		if err != nil {
			return buffer.Field{}, err
		}

		field.Value = buffer.U32(v)
	case EntryTypeU64:
		v, err := uintValue(e.Value, 64)
		if err != nil {
			return buffer.Field{}, err
		}

		field.Value = buffer.U64(v)
	case EntryTypeString8:
		s, ok := e.Value.(string)
		if !ok {
			return buffer.Field{}, fmt.Errorf("value of a %s entry must be a string", EntryTypeString8)
		}

		field.Value = buffer.String8(s)
	case EntryTypeString16:
		s, ok := e.Value.(string)
		if !ok {
			return buffer.Field{}, fmt.Errorf("value of a %s entry must be a string", EntryTypeString16)
		}

		field.Value = buffer.String16(s)
	case EntryTypeFill:
		v, err := uintValue(e.Value, 8)
		if err != nil {
			return buffer.Field{}, err
		}

		if e.Length < 0 {
			return buffer.Field{}, fmt.Errorf("length may not be negative")
		}

		field.Value = buffer.Fill{Value: byte(v), Length: e.Length}
	default:
		return buffer.Field{}, fmt.Errorf("Unknown entry type %q", e.Type)
	}

	return field, nil
}

func uintValue(value any, bits int) (uint64, error) {
	var v uint64

	switch x := value.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("value %d may not be negative", x)
		}

		v = uint64(x)
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("value %d may not be negative", x)
		}

		v = uint64(x)
	case uint64:
		v = x
	case string:
		var err error

		v, err = strconv.ParseUint(strings.TrimSpace(x), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("Failed to parse value %q: %w", x, err)
		}
	case nil:
		return 0, fmt.Errorf("value may not be empty")
	default:
		return 0, fmt.Errorf("value %v must be an integer", value)
	}

	if bits < 64 && v>>bits != 0 {
		return 0, fmt.Errorf("value 0x%X does not fit in %d bits", v, bits)
	}

	return v, nil
}
