package session

import "time"

// Peer is one open bidirectional channel as seen by the registry.
type Peer interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string
	// Send queues data without blocking and reports whether it was accepted.
	// Closed or congested peers return false.
	Send(data []byte) bool
}

// Role is the part a connection plays in the session it is bound to.
type Role int

const (
	RoleSharer Role = iota + 1
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleSharer:
		return "sharer"
	case RoleViewer:
		return "viewer"
	}
	return "none"
}

// Identity is the sharer's display identity shown to viewers.
type Identity struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Ticket is returned when a session is created.
type Ticket struct {
	PIN       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Info is a read-only snapshot of a session.
type Info struct {
	PIN         string    `json:"pin"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	HasSharer   bool      `json:"has_sharer"`
	ViewerCount int       `json:"viewer_count"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Session is one pairing. Fields are only touched with the registry lock held.
type Session struct {
	pin       string
	identity  Identity
	sharer    Peer
	viewers   map[string]Peer
	createdAt time.Time
	expiresAt time.Time
}

func newSession(pin string, identity Identity, createdAt, expiresAt time.Time) *Session {
	return &Session{
		pin:       pin,
		identity:  identity,
		viewers:   make(map[string]Peer),
		createdAt: createdAt,
		expiresAt: expiresAt,
	}
}

// liveAt reports whether the session still routes messages at t.
func (s *Session) liveAt(t time.Time) bool { return t.Before(s.expiresAt) }

func (s *Session) info() Info {
	return Info{
		PIN:         s.pin,
		Name:        s.identity.Name,
		Avatar:      s.identity.Avatar,
		HasSharer:   s.sharer != nil,
		ViewerCount: len(s.viewers),
		CreatedAt:   s.createdAt,
		ExpiresAt:   s.expiresAt,
	}
}

func (s *Session) audience() []Peer {
	peers := make([]Peer, 0, len(s.viewers))
	for _, p := range s.viewers {
		peers = append(peers, p)
	}
	return peers
}

// binding is the registry side-table entry for one connection.
type binding struct {
	pin     string
	role    Role
	session *Session
}
