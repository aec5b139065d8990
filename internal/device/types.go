package device

import "time"

// Metadata holds free-form, protocol-specific device attributes
// (firmware, product key, addressing hints).
type Metadata map[string]any

// Device is one catalogue entry.
type Device struct {
	// ID is the device id used in messages and sessions.
	ID string `json:"id"`

	Name string `json:"name"`

	// Protocol is the id of the protocol.Support the device speaks.
	Protocol string `json:"protocol"`

	Metadata Metadata `json:"metadata,omitempty"`

	// Enabled devices are dispatched to; disabled ones are treated as
	// having no usable protocol.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a copy that shares no maps with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	out := *d
	if d.Metadata != nil {
		out.Metadata = make(Metadata, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = deepCopyValue(v)
		}
	}
	return &out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = deepCopyValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = deepCopyValue(inner)
		}
		return s
	default:
		return val
	}
}
