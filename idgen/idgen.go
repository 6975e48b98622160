// Package idgen draws random connection identifiers that do not collide with
// any identifier currently in use.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/Bowarc/Tetris-wasm/domain"
)

// Generator draws uniformly random 128-bit identifiers from its source.
// A Generator is safe for concurrent use when its source is.
type Generator struct {
	source io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{source: rand.Reader}
}

// NewWithSource returns a Generator that reads from source. Every 16 bytes
// read become one candidate.
func NewWithSource(source io.Reader) *Generator {
	return &Generator{source: source}
}

// Generate returns one random identifier with no collision check.
func (g *Generator) Generate() (domain.ConnectionID, error) {
	var id domain.ConnectionID
	if _, err := io.ReadFull(g.source, id[:]); err != nil {
		return id, fmt.Errorf("read random id: %w", err)
	}
	return id, nil
}

// GenerateUnique redraws until taken reports the candidate as free. There is
// no retry bound: at 128 bits a collision is vanishingly rare, and the caller
// holds the registry lock, so taken must be a plain lookup. It fails only if
// the random source does.
func (g *Generator) GenerateUnique(taken func(domain.ConnectionID) bool) (domain.ConnectionID, error) {
	for {
		id, err := g.Generate()
		if err != nil {
			return id, err
		}
		if !taken(id) {
			return id, nil
		}
	}
}
