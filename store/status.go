package store

import (
	"encoding/json"
	"fmt"
)

// Status is the credential lifecycle state. Active is the only non-terminal
// state; Expired and Revoked are terminal and mutually exclusive forever.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// CanTransition reports whether a credential in state s may move to state to.
func (s Status) CanTransition(to Status) bool {
	return s == StatusActive && to.Terminal()
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("unmarshaling status: %w", err)
	}
	status := Status(str)
	if !status.Valid() {
		return fmt.Errorf("unknown credential status %q", str)
	}
	*s = status
	return nil
}
