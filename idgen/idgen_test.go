package idgen

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bowarc/Tetris-wasm/domain"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func idOf(b byte) domain.ConnectionID {
	var id domain.ConnectionID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestGenerator_GenerateUnique(t *testing.T) {
	t.Run("first free candidate is returned", func(t *testing.T) {
		source := bytes.NewReader(bytes.Repeat([]byte{0xaa}, 16))
		gen := NewWithSource(source)

		id, err := gen.GenerateUnique(func(domain.ConnectionID) bool { return false })
		require.NoError(t, err)
		assert.Equal(t, idOf(0xaa), id)
	})

	t.Run("colliding candidates are redrawn", func(t *testing.T) {
		var stream []byte
		stream = append(stream, bytes.Repeat([]byte{0x01}, 16)...)
		stream = append(stream, bytes.Repeat([]byte{0x02}, 16)...)
		stream = append(stream, bytes.Repeat([]byte{0x03}, 16)...)
		gen := NewWithSource(bytes.NewReader(stream))

		existing := map[domain.ConnectionID]bool{idOf(0x01): true, idOf(0x02): true}
		calls := 0
		id, err := gen.GenerateUnique(func(id domain.ConnectionID) bool {
			calls++
			return existing[id]
		})
		require.NoError(t, err)
		assert.Equal(t, idOf(0x03), id)
		assert.Equal(t, 3, calls)
	})

	t.Run("source failure is returned", func(t *testing.T) {
		gen := NewWithSource(failingReader{})

		_, err := gen.GenerateUnique(func(domain.ConnectionID) bool { return false })
		assert.Error(t, err)
	})

	t.Run("short source is an error", func(t *testing.T) {
		gen := NewWithSource(bytes.NewReader([]byte{1, 2, 3}))

		_, err := gen.Generate()
		assert.Error(t, err)
	})
}

func TestGenerator_CryptoSourceConcurrent(t *testing.T) {
	gen := New()
	const n = 500
	ids := make([]domain.ConnectionID, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			id, err := gen.Generate()
			assert.NoError(t, err)
			ids[idx] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[domain.ConnectionID]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
