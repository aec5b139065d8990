package cluster

import (
	"fmt"
	"strings"
)

// MatchTopic reports whether topic matches pattern using MQTT wildcard rules.
//
//	MatchTopic("a/+/c", "a/b/c") // true
//	MatchTopic("a/#", "a")       // true, "#" also matches the parent level
//	MatchTopic("a/+", "a/b/c")   // false
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")

	for i, level := range p {
		if level == "#" {
			return i == len(p)-1
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}

// ValidatePattern checks that wildcards occupy whole levels and that "#"
// only appears as the last level.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPattern)
	}

	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q: '#' must be the last level", ErrInvalidPattern, pattern)
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: %q: wildcards must occupy a whole level", ErrInvalidPattern, pattern)
		}
	}
	return nil
}

// hasWildcard reports whether name contains a wildcard level.
func hasWildcard(name string) bool {
	return strings.ContainsAny(name, "+#")
}
