package device

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxNameLength = 100
	maxIDLength   = 128

	// maxMetadataKeys bounds the metadata map stored per device.
	maxMetadataKeys = 50
)

// protocolPattern matches protocol ids such as "graylogic-json".
var protocolPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_.][a-z0-9]+)*$`)

// ValidateDevice returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := ValidateProtocol(d.Protocol); err != nil {
		return err
	}
	if len(d.Metadata) > maxMetadataKeys {
		return fmt.Errorf("%w: metadata has %d keys, max %d", ErrInvalidDevice, len(d.Metadata), maxMetadataKeys)
	}
	return nil
}

// ValidateID checks a device id. Ids travel in cluster topic names, so they
// must not contain topic separators or wildcards.
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLength {
		return fmt.Errorf("%w: id must be 1-%d characters", ErrInvalidDevice, maxIDLength)
	}
	if strings.ContainsAny(id, "/+# \t\n") {
		return fmt.Errorf("%w: id %q contains a reserved character", ErrInvalidDevice, id)
	}
	return nil
}

// ValidateName checks the display name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateProtocol checks the protocol id format. Whether the protocol is
// registered is only known at dispatch time.
func ValidateProtocol(protocol string) error {
	if !protocolPattern.MatchString(protocol) {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, protocol)
	}
	return nil
}
