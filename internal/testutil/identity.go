package testutil

import "github.com/google/uuid"

// IdentityGenerator produces identity tag values for scenario steps.
type IdentityGenerator interface {
	Generate() string
}

// UUIDGenerator generates a fresh random UUID per call.
//
// This is the production generator: every tagged output gets a unique
// identity so independently produced outputs never collide by accident.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new random UUID as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// FixedIdentityGenerator returns the same identity value every time.
//
// This enables deterministic scenario execution and golden trace
// comparison: the same scenario with the same pinned identity produces
// byte-identical tagged outputs.
//
// Thread-safety: stateless after construction, safe for concurrent use.
type FixedIdentityGenerator struct {
	identity string
}

// NewFixedIdentityGenerator creates a generator pinned to identity.
// If identity is empty, Generate() returns "test-identity-default".
func NewFixedIdentityGenerator(identity string) *FixedIdentityGenerator {
	if identity == "" {
		identity = "test-identity-default"
	}
	return &FixedIdentityGenerator{identity: identity}
}

// Generate returns the pinned identity value.
func (g *FixedIdentityGenerator) Generate() string {
	return g.identity
}
