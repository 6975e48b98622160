package domain

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ConnectionID is an unsigned 128-bit integer stored big-endian.
// On the wire it is a bare decimal number; in logs and the admin API it is
// printed in hyphenated hex form.
type ConnectionID [16]byte

func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}

func (id ConnectionID) BigInt() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

func (id ConnectionID) Compare(other ConnectionID) int {
	return bytes.Compare(id[:], other[:])
}

func ConnectionIDFromBig(n *big.Int) (ConnectionID, error) {
	var id ConnectionID
	if n.Sign() < 0 || n.BitLen() > 128 {
		return id, fmt.Errorf("connection id %s out of 128-bit range", n)
	}
	n.FillBytes(id[:])
	return id, nil
}

// ParseConnectionID accepts the hyphenated hex form or a decimal integer.
func ParseConnectionID(s string) (ConnectionID, error) {
	if strings.Contains(s, "-") {
		u, err := uuid.Parse(s)
		if err != nil {
			return ConnectionID{}, fmt.Errorf("invalid connection id %q: %w", s, err)
		}
		return ConnectionID(u), nil
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return ConnectionID{}, fmt.Errorf("invalid connection id %q", s)
	}
	return ConnectionIDFromBig(n)
}

func (id ConnectionID) MarshalJSON() ([]byte, error) {
	return []byte(id.BigInt().String()), nil
}

func (id *ConnectionID) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if unquoted, ok := strings.CutPrefix(s, `"`); ok {
		s = strings.TrimSuffix(unquoted, `"`)
	}

	parsed, err := ParseConnectionID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
