package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ClientMessage
	}{
		{
			name:  "lines destroyed",
			input: `{"LinesDestroyed":[42,7]}`,
			want:  LinesDestroyed{Rows: []uint16{42, 7}},
		},
		{
			name:  "lines destroyed empty",
			input: `{"LinesDestroyed":[]}`,
			want:  LinesDestroyed{Rows: []uint16{}},
		},
		{
			name:  "game over unit variant",
			input: `"GameOver"`,
			want:  GameOver{},
		},
		{
			name:  "game over with null body",
			input: `{"GameOver":null}`,
			want:  GameOver{},
		},
		{
			name:  "board update keeps payload verbatim",
			input: `{"BoardUpdate":[[null,"I"],[null,null]]}`,
			want:  BoardUpdate{Board: json.RawMessage(`[[null,"I"],[null,null]]`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeClientMessage_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		`"Unknown"`,
		`{"Chat":"hi"}`,
		`{"LinesDestroyed":[70000]}`,
		`{"LinesDestroyed":[-1]}`,
		`{"LinesDestroyed":null}`,
		`{"LinesDestroyed":"x"}`,
		`{"BoardUpdate":null}`,
		`{"GameOver":1}`,
		`{"GameOver":null,"LinesDestroyed":[]}`,
		`{}`,
		`[1,2]`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestEncodeServerFrame_WireShape(t *testing.T) {
	origin := ConnectionID{15: 5}

	frame, err := EncodeServerFrame(DefaultFramePrefix, Broadcast{
		Origin: origin,
		Msg:    LinesDestroyed{Rows: []uint16{0b101010}},
	})
	require.NoError(t, err)
	assert.Equal(t, `Broadcast: {"Broadcast":{"user_id":5,"msg":{"LinesDestroyed":[42]}}}`, string(frame))

	frame, err = EncodeServerFrame("", Broadcast{Origin: origin, Msg: GameOver{}})
	require.NoError(t, err)
	assert.Equal(t, `{"Broadcast":{"user_id":5,"msg":"GameOver"}}`, string(frame))

	frame, err = EncodeServerFrame("", LeaderBoardUpdate{})
	require.NoError(t, err)
	assert.Equal(t, `{"LeaderBoardUpdate":[]}`, string(frame))
}

func TestDecodeServerFrame(t *testing.T) {
	origin := maxID()
	board := json.RawMessage(`{"rows":[[1,2,3]]}`)
	want := Broadcast{Origin: origin, Msg: BoardUpdate{Board: board}}

	for _, prefix := range []string{DefaultFramePrefix, "", "Relay: "} {
		t.Run("prefix "+prefix, func(t *testing.T) {
			frame, err := EncodeServerFrame(prefix, want)
			require.NoError(t, err)

			got, err := DecodeServerFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEncodeClientMessage_RejectsForeignType(t *testing.T) {
	_, err := EncodeClientMessage(nil)
	assert.Error(t, err)
}
