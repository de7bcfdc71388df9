package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/pinshare/share/protocol"
	"github.com/wricardo/pinshare/share/session"
)

var (
	// ErrSessionNotFound is returned for unknown and expired PINs.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrInvalidPIN is returned when a PIN is not six digits.
	ErrInvalidPIN = errors.New("invalid pin")
)

// PairingService defines all sharing operations
type PairingService interface {
	// Pairing
	CreateSession(ctx context.Context, sharer session.Peer, req protocol.CreateRequest) (*protocol.PinMessage, error)
	JoinSession(ctx context.Context, viewer session.Peer, pin string) (*protocol.SuccessMessage, error)
	ShareLocation(ctx context.Context, update protocol.LocationUpdate) (*FanoutResult, error)
	Detach(ctx context.Context, peer session.Peer) bool

	// Inspection
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	GetSession(ctx context.Context, pin string) (*SessionInfo, error)
	EndSession(ctx context.Context, pin string) error
	SessionCount(ctx context.Context) int
}

// Registry defines session storage operations
type Registry interface {
	Create(name, avatar string, sharer session.Peer) (session.Ticket, error)
	Lookup(pin string) (session.Info, error)
	Join(pin string, viewer session.Peer) (session.Identity, error)
	Detach(peer session.Peer) bool
	Audience(pin string) ([]session.Peer, session.Identity, error)
	Delete(pin string) error
	List() []session.Info
	Count() int
	Now() time.Time
}

// FanoutResult reports how one location update was distributed.
type FanoutResult struct {
	PIN       string `json:"pin"`
	Delivered int    `json:"delivered"`
	Skipped   int    `json:"skipped"`
}

// SessionInfo is the admin view of a session.
type SessionInfo struct {
	session.Info
	ExpiresIn string `json:"expires_in"`
}
