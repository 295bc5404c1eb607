package usecase

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/iho/payengine/internal/domain"
)

// Variant selects the engine implementation.
type Variant string

const (
	VariantSequential Variant = "sequential"
	VariantBounded    Variant = "bounded"
	VariantSharded    Variant = "sharded"
)

const (
	DefaultMaxAccounts               = 10_000
	DefaultMaxDisputableTransactions = 50_000
	DefaultMaxProcessedIDs           = 1_000_000
	DefaultQueueSize                 = 1024
)

// ErrUnknownVariant is returned for an engine name that is not recognised.
var ErrUnknownVariant = errors.New("unknown engine variant")

// ParseVariant parses an engine name. "standard" and "concurrent" are
// accepted as aliases of sequential and sharded.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential", "standard":
		return VariantSequential, nil
	case "bounded":
		return VariantBounded, nil
	case "sharded", "concurrent":
		return VariantSharded, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// EngineConfig is everything needed to build an engine.
type EngineConfig struct {
	Variant                   Variant
	MaxAccounts               int
	MaxDisputableTransactions int
	MaxProcessedIDs           int
	// MemoryLimitMB overrides the three capacities when positive.
	MemoryLimitMB int
	Workers       int
	QueueSize     int
	// Bounded makes sharded workers use bounded engines.
	Bounded bool
}

// DefaultEngineConfig returns a sequential configuration with default capacities.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Variant:                   VariantSequential,
		MaxAccounts:               DefaultMaxAccounts,
		MaxDisputableTransactions: DefaultMaxDisputableTransactions,
		MaxProcessedIDs:           DefaultMaxProcessedIDs,
		Workers:                   runtime.NumCPU(),
		QueueSize:                 DefaultQueueSize,
	}
}

// Limits returns the container capacities for bounded engines.
func (c EngineConfig) Limits() domain.MemoryLimits {
	if c.MemoryLimitMB > 0 {
		return domain.LimitsForMemoryMB(c.MemoryLimitMB)
	}
	return domain.MemoryLimits{
		MaxAccounts:               c.MaxAccounts,
		MaxDisputableTransactions: c.MaxDisputableTransactions,
		MaxProcessedIDs:           c.MaxProcessedIDs,
	}
}

// UsesBoundedStore reports whether engines built from c need bounded containers.
func (c EngineConfig) UsesBoundedStore() bool {
	return c.Variant == VariantBounded || (c.Variant == VariantSharded && c.Bounded)
}

// Validate checks the fields relevant to the selected variant.
func (c EngineConfig) Validate() error {
	if _, err := ParseVariant(string(c.Variant)); err != nil {
		return err
	}
	if c.UsesBoundedStore() {
		if err := c.Limits().Validate(); err != nil {
			return err
		}
	}
	if c.Variant == VariantSharded {
		if c.Workers < 1 {
			return fmt.Errorf("workers must be positive, got %d", c.Workers)
		}
		if c.QueueSize < 1 {
			return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
		}
	}
	return nil
}
