package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Variant tags. Messages use externally tagged JSON: unit variants are bare
// strings, every other variant is a single-key object.
const (
	TagBoardUpdate       = "BoardUpdate"
	TagLinesDestroyed    = "LinesDestroyed"
	TagGameOver          = "GameOver"
	TagBroadcast         = "Broadcast"
	TagLeaderBoardUpdate = "LeaderBoardUpdate"
)

// DefaultFramePrefix is written before every outbound ServerMessage.
const DefaultFramePrefix = "Broadcast: "

var jsonNull = []byte("null")

// ClientMessage is sent by game clients. The set of implementations is closed.
type ClientMessage interface {
	clientMessage()
}

// BoardUpdate carries a board snapshot the relay never interprets.
type BoardUpdate struct {
	Board json.RawMessage
}

// LinesDestroyed carries one bitmask per destroyed row.
type LinesDestroyed struct {
	Rows []uint16
}

type GameOver struct{}

func (BoardUpdate) clientMessage()    {}
func (LinesDestroyed) clientMessage() {}
func (GameOver) clientMessage()       {}

// ServerMessage is sent by the relay. The set of implementations is closed.
type ServerMessage interface {
	serverMessage()
}

// Broadcast wraps a client message with the identity of its sender.
type Broadcast struct {
	Origin ConnectionID
	Msg    ClientMessage
}

// LeaderBoardUpdate is reserved; the relay never sends it.
type LeaderBoardUpdate struct{}

func (Broadcast) serverMessage()         {}
func (LeaderBoardUpdate) serverMessage() {}

type broadcastBody struct {
	UserID ConnectionID    `json:"user_id"`
	Msg    json.RawMessage `json:"msg"`
}

func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case BoardUpdate:
		board := m.Board
		if len(board) == 0 {
			board = jsonNull
		}
		return json.Marshal(map[string]json.RawMessage{TagBoardUpdate: board})
	case LinesDestroyed:
		rows := m.Rows
		if rows == nil {
			rows = []uint16{}
		}
		return json.Marshal(map[string][]uint16{TagLinesDestroyed: rows})
	case GameOver:
		return json.Marshal(TagGameOver)
	default:
		return nil, fmt.Errorf("encode client message: unknown type %T", msg)
	}
}

// DecodeClientMessage parses one inbound frame. Every failure wraps
// ErrMalformedMessage.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	tag, body, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagBoardUpdate:
		if body == nil || bytes.Equal(body, jsonNull) {
			return nil, fmt.Errorf("%w: %s without board", ErrMalformedMessage, tag)
		}
		return BoardUpdate{Board: append(json.RawMessage(nil), body...)}, nil
	case TagLinesDestroyed:
		if body == nil || bytes.Equal(body, jsonNull) {
			return nil, fmt.Errorf("%w: %s without rows", ErrMalformedMessage, tag)
		}
		var rows []uint16
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, tag, err)
		}
		return LinesDestroyed{Rows: rows}, nil
	case TagGameOver:
		if body != nil && !bytes.Equal(body, jsonNull) {
			return nil, fmt.Errorf("%w: %s takes no payload", ErrMalformedMessage, tag)
		}
		return GameOver{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrMalformedMessage, tag)
	}
}

func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case Broadcast:
		inner, err := EncodeClientMessage(m.Msg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]broadcastBody{
			TagBroadcast: {UserID: m.Origin, Msg: inner},
		})
	case LeaderBoardUpdate:
		return json.Marshal(map[string][]struct{}{TagLeaderBoardUpdate: {}})
	default:
		return nil, fmt.Errorf("encode server message: unknown type %T", msg)
	}
}

func DecodeServerMessage(data []byte) (ServerMessage, error) {
	tag, body, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagBroadcast:
		var b broadcastBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, tag, err)
		}
		inner, err := DecodeClientMessage(b.Msg)
		if err != nil {
			return nil, err
		}
		return Broadcast{Origin: b.UserID, Msg: inner}, nil
	case TagLeaderBoardUpdate:
		return LeaderBoardUpdate{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrMalformedMessage, tag)
	}
}

// EncodeServerFrame renders msg as one outbound text frame.
func EncodeServerFrame(prefix string, msg ServerMessage) ([]byte, error) {
	body, err := EncodeServerMessage(msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(prefix)+len(body))
	frame = append(frame, prefix...)
	return append(frame, body...), nil
}

// DecodeServerFrame strips a leading "<marker>: " prefix, if any, and decodes
// the rest.
func DecodeServerFrame(frame []byte) (ServerMessage, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) > 0 && trimmed[0] != '{' && trimmed[0] != '"' {
		if _, rest, found := bytes.Cut(trimmed, []byte(": ")); found {
			trimmed = rest
		}
	}
	return DecodeServerMessage(trimmed)
}

// splitTagged returns the variant tag and, for non-unit variants, its body.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return tag, nil, nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(tagged) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrMalformedMessage, len(tagged))
	}
	for tag, body := range tagged {
		return tag, body, nil
	}
	return "", nil, fmt.Errorf("%w: no variant", ErrMalformedMessage)
}
