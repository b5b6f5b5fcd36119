package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TTL is a credential lifespan expressed in the short-form notation used
// throughout VaultMark: "30s", "5m", "1h", "1d". It marshals to and from
// that notation in YAML.
type TTL time.Duration

var ttlRE = regexp.MustCompile(`^(\d+)(s|m|h|d)$`)

var ttlUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseTTL parses short-form TTL notation.
func ParseTTL(s string) (TTL, error) {
	m := ttlRE.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid TTL %q: use a value like 30s, 5m, 1h or 1d", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL %q: %w", s, err)
	}
	return TTL(time.Duration(n) * ttlUnits[m[2]]), nil
}

// Duration returns the TTL as a time.Duration.
func (t TTL) Duration() time.Duration {
	return time.Duration(t)
}

// Seconds returns the whole number of seconds in the TTL.
func (t TTL) Seconds() int64 {
	return int64(time.Duration(t) / time.Second)
}

func (t TTL) String() string {
	d := time.Duration(t)
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

func (t TTL) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *TTL) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("unmarshaling TTL: %w", err)
	}
	parsed, err := ParseTTL(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
