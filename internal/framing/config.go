package framing

// Framing configuration: how a continuous byte stream is segmented into
// frames.

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbaxter/serialforge/internal/codec"
)

// Strategy is a frame segmentation policy.
type Strategy string

const (
	StrategyNone         Strategy = "NONE"
	StrategyDelimiter    Strategy = "DELIMITER"
	StrategyTimeout      Strategy = "TIMEOUT"
	StrategyPrefixLength Strategy = "PREFIX_LENGTH"
	StrategyScript       Strategy = "SCRIPT"
)

// ParseStrategy parses a strategy tag (case-insensitive). Empty defaults to
// NONE.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return StrategyNone, nil
	case "DELIMITER":
		return StrategyDelimiter, nil
	case "TIMEOUT":
		return StrategyTimeout, nil
	case "PREFIX_LENGTH", "PREFIX":
		return StrategyPrefixLength, nil
	case "SCRIPT":
		return StrategyScript, nil
	default:
		return "", fmt.Errorf("unknown framing strategy %q", s)
	}
}

// Persistence controls whether a per-command framing override leaks back
// into the connection's configured framing.
type Persistence string

const (
	PersistenceTransient  Persistence = "TRANSIENT"
	PersistencePersistent Persistence = "PERSISTENT"
)

// FlushClock selects the timing source for SCRIPT forceFlush: an idle timer
// restarted on every byte, or a fixed wall-clock interval.
type FlushClock string

const (
	FlushIdle     FlushClock = "IDLE"
	FlushInterval FlushClock = "INTERVAL"
)

// Config is the authored framing configuration.
type Config struct {
	Strategy         Strategy        `yaml:"strategy"`
	Delimiter        string          `yaml:"delimiter,omitempty"`          // raw byte sequence
	TimeoutMs        int             `yaml:"timeout,omitempty"`            // idle-flush window, milliseconds
	PrefixLengthSize int             `yaml:"prefix_length_size,omitempty"` // 1..8
	ByteOrder        codec.ByteOrder `yaml:"byte_order,omitempty"`
	Script           string          `yaml:"script,omitempty"`
	Persistence      Persistence     `yaml:"persistence,omitempty"`
	FlushClock       FlushClock      `yaml:"flush_clock,omitempty"`
}

// Timeout returns the idle-flush window as a duration (zero when unset).
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate checks strategy-specific required fields.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyNone:
	case StrategyDelimiter:
		if len(c.Delimiter) == 0 {
			return fmt.Errorf("DELIMITER framing needs a delimiter")
		}
	case StrategyTimeout:
		if c.TimeoutMs <= 0 {
			return fmt.Errorf("TIMEOUT framing needs a positive timeout")
		}
	case StrategyPrefixLength:
		if c.PrefixLengthSize < 1 || c.PrefixLengthSize > 8 {
			return fmt.Errorf("prefix length size %d out of range [1,8]", c.PrefixLengthSize)
		}
	case StrategyScript:
		if strings.TrimSpace(c.Script) == "" {
			return fmt.Errorf("SCRIPT framing needs a script")
		}
	default:
		return fmt.Errorf("unknown framing strategy %q", c.Strategy)
	}
	switch c.FlushClock {
	case "", FlushIdle, FlushInterval:
	default:
		return fmt.Errorf("unknown flush clock %q", c.FlushClock)
	}
	switch c.Persistence {
	case "", PersistenceTransient, PersistencePersistent:
	default:
		return fmt.Errorf("unknown framing persistence %q", c.Persistence)
	}
	return nil
}
