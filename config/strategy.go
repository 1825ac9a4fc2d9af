package config

import (
	"fmt"
	"strings"
)

// Strategy is the locking discipline chosen once at startup
type Strategy string

const (
	// NoSync takes no locks at all; only valid with a single worker
	NoSync Strategy = "nosync"
	// GlobalLock serializes every operation behind one mutex
	GlobalLock Strategy = "mutex"
	// PerNodeLock uses per-inode reader/writer locks with lock coupling
	PerNodeLock Strategy = "rwlock"
)

// ParseStrategy accepts the canonical names plus a few readable aliases
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nosync", "none":
		return NoSync, nil
	case "mutex", "global":
		return GlobalLock, nil
	case "rwlock", "pernode", "per-node":
		return PerNodeLock, nil
	}
	return "", fmt.Errorf("unknown synchronization strategy: %q", s)
}

func (s Strategy) String() string {
	return string(s)
}

// UnmarshalText lets yaml and json overrides use any accepted alias
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s), nil
}
