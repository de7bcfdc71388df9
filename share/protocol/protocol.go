// Package protocol defines the JSON messages exchanged over a sharing
// websocket and decodes inbound frames into typed requests.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types. Location is used in both directions.
const (
	TypeCreate   = "create"
	TypeJoin     = "join"
	TypeLocation = "location"
	TypePin      = "pin"
	TypeSuccess  = "success"
	TypeError    = "error"
)

// MsgInvalidPIN is the reason sent to viewers joining an unknown session.
const MsgInvalidPIN = "invalid or expired PIN"

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
	ErrMissingPIN  = errors.New("missing pin")
)

// CreateRequest asks the server to open a session with the sender as sharer.
type CreateRequest struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// JoinRequest subscribes the sender to a session.
type JoinRequest struct {
	PIN string `json:"pin"`
}

// LocationUpdate is a position relayed to the session's viewers.
type LocationUpdate struct {
	PIN string  `json:"pin"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Inbound is a decoded client frame. Exactly one of the request fields is set,
// matching Type.
type Inbound struct {
	Type     string
	Create   *CreateRequest
	Join     *JoinRequest
	Location *LocationUpdate
}

// Sharer is the display identity shown to viewers.
type Sharer struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// PinMessage answers a create.
type PinMessage struct {
	Type      string `json:"type"`
	PIN       string `json:"pin"`
	ExpiresAt int64  `json:"expiresAt"`
}

// SuccessMessage answers a successful join.
type SuccessMessage struct {
	Type   string `json:"type"`
	Sharer Sharer `json:"sharer"`
}

// ErrorMessage carries a human readable failure reason.
type ErrorMessage struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// LocationMessage is what viewers receive for every update.
type LocationMessage struct {
	Type   string  `json:"type"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Name   string  `json:"name"`
	Avatar string  `json:"avatar"`
}

// Frames sent by clients. Servers only decode them; clients such as
// cmd/pinclient encode them.
type (
	CreateFrame struct {
		Type   string `json:"type"`
		Name   string `json:"name,omitempty"`
		Avatar string `json:"avatar,omitempty"`
	}
	JoinFrame struct {
		Type string `json:"type"`
		PIN  string `json:"pin"`
	}
	LocationFrame struct {
		Type string  `json:"type"`
		PIN  string  `json:"pin"`
		Lat  float64 `json:"lat"`
		Lng  float64 `json:"lng"`
	}
)

func NewCreateFrame(name, avatar string) CreateFrame {
	return CreateFrame{Type: TypeCreate, Name: name, Avatar: avatar}
}

func NewJoinFrame(pin string) JoinFrame { return JoinFrame{Type: TypeJoin, PIN: pin} }

func NewLocationFrame(pin string, lat, lng float64) LocationFrame {
	return LocationFrame{Type: TypeLocation, PIN: pin, Lat: lat, Lng: lng}
}

// raw mirrors every inbound field. Pointers tell absent from zero.
type raw struct {
	Type   *string  `json:"type"`
	Name   *string  `json:"name"`
	Avatar *string  `json:"avatar"`
	PIN    *string  `json:"pin"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// Decode parses one inbound frame. Errors wrap ErrMalformed or ErrUnknownType;
// callers drop the frame either way.
func Decode(data []byte) (*Inbound, error) {
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch *r.Type {
	case TypeCreate:
		req := &CreateRequest{}
		if r.Name != nil {
			req.Name = *r.Name
		}
		if r.Avatar != nil {
			req.Avatar = *r.Avatar
		}
		return &Inbound{Type: TypeCreate, Create: req}, nil

	case TypeJoin:
		if r.PIN == nil {
			return nil, fmt.Errorf("%w: join: %w", ErrMalformed, ErrMissingPIN)
		}
		return &Inbound{Type: TypeJoin, Join: &JoinRequest{PIN: *r.PIN}}, nil

	case TypeLocation:
		if r.PIN == nil {
			return nil, fmt.Errorf("%w: location: %w", ErrMalformed, ErrMissingPIN)
		}
		if r.Lat == nil || r.Lng == nil {
			return nil, fmt.Errorf("%w: location: lat and lng are required", ErrMalformed)
		}
		return &Inbound{Type: TypeLocation, Location: &LocationUpdate{PIN: *r.PIN, Lat: *r.Lat, Lng: *r.Lng}}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, *r.Type)
}

// NewPin builds the create reply. Expiry is sent as epoch milliseconds.
func NewPin(pin string, expiresAt time.Time) PinMessage {
	return PinMessage{Type: TypePin, PIN: pin, ExpiresAt: expiresAt.UnixMilli()}
}

func NewSuccess(name, avatar string) SuccessMessage {
	return SuccessMessage{Type: TypeSuccess, Sharer: Sharer{Name: name, Avatar: avatar}}
}

func NewError(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Msg: msg}
}

func NewLocation(lat, lng float64, name, avatar string) LocationMessage {
	return LocationMessage{Type: TypeLocation, Lat: lat, Lng: lng, Name: name, Avatar: avatar}
}

// Encode marshals an outbound message.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}
