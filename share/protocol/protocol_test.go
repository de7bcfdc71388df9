package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Inbound
		wantErr error
	}{
		{
			name:  "create with identity",
			input: `{"type":"create","name":"Alice","avatar":"a.png"}`,
			want:  &Inbound{Type: TypeCreate, Create: &CreateRequest{Name: "Alice", Avatar: "a.png"}},
		},
		{
			name:  "create without fields",
			input: `{"type":"create"}`,
			want:  &Inbound{Type: TypeCreate, Create: &CreateRequest{}},
		},
		{
			name:  "join",
			input: `{"type":"join","pin":"482913"}`,
			want:  &Inbound{Type: TypeJoin, Join: &JoinRequest{PIN: "482913"}},
		},
		{
			name:  "location",
			input: `{"type":"location","pin":"482913","lat":48.8,"lng":2.3}`,
			want:  &Inbound{Type: TypeLocation, Location: &LocationUpdate{PIN: "482913", Lat: 48.8, Lng: 2.3}},
		},
		{
			name:  "location at origin keeps zero coordinates",
			input: `{"type":"location","pin":"482913","lat":0,"lng":0}`,
			want:  &Inbound{Type: TypeLocation, Location: &LocationUpdate{PIN: "482913"}},
		},
		{name: "not json", input: `hello`, wantErr: ErrMalformed},
		{name: "missing type", input: `{"pin":"482913"}`, wantErr: ErrMalformed},
		{name: "type not a string", input: `{"type":5}`, wantErr: ErrMalformed},
		{name: "join without pin", input: `{"type":"join"}`, wantErr: ErrMissingPIN},
		{name: "location without pin", input: `{"type":"location","lat":1,"lng":2}`, wantErr: ErrMissingPIN},
		{name: "location without lng", input: `{"type":"location","pin":"482913","lat":1}`, wantErr: ErrMalformed},
		{name: "location with string lat", input: `{"type":"location","pin":"482913","lat":"1","lng":2}`, wantErr: ErrMalformed},
		{name: "unknown type", input: `{"type":"teleport"}`, wantErr: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutboundShapes(t *testing.T) {
	expires := time.UnixMilli(1700000000123)

	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"pin", NewPin("482913", expires), `{"type":"pin","pin":"482913","expiresAt":1700000000123}`},
		{"success", NewSuccess("Alice", ""), `{"type":"success","sharer":{"name":"Alice","avatar":""}}`},
		{"error", NewError(MsgInvalidPIN), `{"type":"error","msg":"invalid or expired PIN"}`},
		{"location", NewLocation(48.8, 2.3, "Alice", ""), `{"type":"location","lat":48.8,"lng":2.3,"name":"Alice","avatar":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_Unsupported(t *testing.T) {
	_, err := Encode(map[string]any{"c": make(chan int)})
	var unsupported *json.UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
}

func TestClientFramesDecode(t *testing.T) {
	for _, frame := range []any{
		NewCreateFrame("Alice", ""),
		NewJoinFrame("482913"),
		NewLocationFrame("482913", 0, -0.5),
	} {
		data, err := Encode(frame)
		require.NoError(t, err)

		msg, err := Decode(data)
		require.NoError(t, err, "frame %s", data)

		switch f := frame.(type) {
		case CreateFrame:
			assert.Equal(t, &CreateRequest{Name: f.Name, Avatar: f.Avatar}, msg.Create)
		case JoinFrame:
			assert.Equal(t, &JoinRequest{PIN: f.PIN}, msg.Join)
		case LocationFrame:
			assert.Equal(t, &LocationUpdate{PIN: f.PIN, Lat: f.Lat, Lng: f.Lng}, msg.Location)
		}
	}
}
