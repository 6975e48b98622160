package protocol

import (
	"fmt"
	"math/rand/v2"

	"github.com/Bowarc/Tetris-wasm/domain"
)

// Plan sends Message to every id in Targets. An empty plan is a no-op.
type Plan struct {
	Message domain.ServerMessage
	Targets []domain.ConnectionID
}

// Picker returns an index in [0, n).
type Picker func(n int) int

func RandomPicker(n int) int {
	return rand.IntN(n)
}

// Route decides who receives msg. It is pure: live is a snapshot taken by the
// caller and no registry is touched.
//
// BoardUpdate and GameOver go to every live id except the sender.
// LinesDestroyed goes to exactly one other id drawn by pick; with fewer than
// two live ids it is dropped.
func Route(sender domain.ConnectionID, msg domain.ClientMessage, live []domain.ConnectionID, pick Picker) (Plan, error) {
	out := domain.Broadcast{Origin: sender, Msg: msg}

	switch msg.(type) {
	case domain.BoardUpdate, domain.GameOver:
		return Plan{Message: out, Targets: excluding(live, sender)}, nil
	case domain.LinesDestroyed:
		if len(live) < 2 {
			return Plan{}, nil
		}
		eligible := excluding(live, sender)
		if len(eligible) == 0 {
			return Plan{}, nil
		}
		return Plan{Message: out, Targets: []domain.ConnectionID{eligible[pick(len(eligible))]}}, nil
	default:
		return Plan{}, fmt.Errorf("%w: %T", domain.ErrUnroutable, msg)
	}
}

func excluding(ids []domain.ConnectionID, skip domain.ConnectionID) []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

func kindOf(msg domain.ClientMessage) string {
	switch msg.(type) {
	case domain.BoardUpdate:
		return domain.TagBoardUpdate
	case domain.LinesDestroyed:
		return domain.TagLinesDestroyed
	case domain.GameOver:
		return domain.TagGameOver
	default:
		return fmt.Sprintf("%T", msg)
	}
}
