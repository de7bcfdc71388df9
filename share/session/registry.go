package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilPeer         = errors.New("nil peer")
)

const (
	DefaultTTL  = 10 * time.Minute
	DefaultName = "Sharer"
)

// Registry owns every live session and the connection to session side-table.
type Registry struct {
	sessions map[string]*Session
	bindings map[string]binding
	mu       sync.RWMutex

	ttl         time.Duration
	defaultName string
	now         func() time.Time
	generate    PINGenerator
	log         zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

func WithTTL(ttl time.Duration) Option { return func(r *Registry) { r.ttl = ttl } }

// WithDefaultName sets the name used when a sharer supplies none.
func WithDefaultName(name string) Option { return func(r *Registry) { r.defaultName = name } }

func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func WithPINGenerator(g PINGenerator) Option { return func(r *Registry) { r.generate = g } }

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = logging.Component(log, "session-registry") }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		bindings:    make(map[string]binding),
		ttl:         DefaultTTL,
		defaultName: DefaultName,
		now:         time.Now,
		generate:    RandomPIN,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new session under a fresh PIN and binds sharer to it when
// sharer is not nil. A PIN held by a live session is never reused; a PIN held
// by an expired, not yet swept session is replaced.
func (r *Registry) Create(name, avatar string, sharer Peer) (Ticket, error) {
	if name == "" {
		name = r.defaultName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var pin string
	for {
		candidate, err := r.generate()
		if err != nil {
			return Ticket{}, err
		}
		existing, taken := r.sessions[candidate]
		if taken && existing.liveAt(now) {
			metrics.PINCollisions.Inc()
			r.log.Debug().Str("pin", candidate).Msg("pin collision, drawing again")
			continue
		}
		if taken {
			metrics.RecordSessionRemoved("replaced")
		}
		pin = candidate
		break
	}

	s := newSession(pin, Identity{Name: name, Avatar: avatar}, now, now.Add(r.ttl))
	r.sessions[pin] = s
	metrics.RecordSessionCreated()

	if sharer != nil {
		r.unbindLocked(sharer.ID())
		s.sharer = sharer
		r.bindings[sharer.ID()] = binding{pin: pin, role: RoleSharer, session: s}
	}

	r.log.Info().Str("pin", pin).Str("name", name).Time("expires_at", s.expiresAt).Msg("session created")
	return Ticket{PIN: pin, ExpiresAt: s.expiresAt}, nil
}

// Lookup returns a snapshot of the live session for pin. Expired sessions are
// reported as not found even before the sweep removes them.
func (r *Registry) Lookup(pin string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.liveLocked(pin)
	if s == nil {
		return Info{}, ErrSessionNotFound
	}
	return s.info(), nil
}

// Join adds viewer to the session's viewer set and returns the sharer's
// identity. Unknown or expired PINs leave the registry untouched.
func (r *Registry) Join(pin string, viewer Peer) (Identity, error) {
	if viewer == nil {
		return Identity{}, ErrNilPeer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.liveLocked(pin)
	if s == nil {
		metrics.RecordJoin(false)
		return Identity{}, ErrSessionNotFound
	}

	id := viewer.ID()
	if b, ok := r.bindings[id]; !ok || b.session != s || b.role != RoleViewer {
		// A connection belongs to one session at a time; joining also moves a
		// sharer out of its slot so it is never both.
		r.unbindLocked(id)
		s.viewers[id] = viewer
		r.bindings[id] = binding{pin: pin, role: RoleViewer, session: s}
	}
	metrics.RecordJoin(true)

	r.log.Debug().Str("pin", pin).Str("conn", id).Int("viewers", len(s.viewers)).Msg("viewer joined")
	return s.identity, nil
}

// Detach releases whatever peer holds: the sharer slot or a viewer seat.
// It reports whether peer was bound.
func (r *Registry) Detach(peer Peer) bool {
	if peer == nil {
		return false
	}
	return r.DetachID(peer.ID())
}

// DetachID is Detach keyed by connection id.
func (r *Registry) DetachID(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unbindLocked(id)
}

// Audience returns a snapshot of the viewers of a live session along with the
// sharer identity to stamp on broadcasts.
func (r *Registry) Audience(pin string) ([]Peer, Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.liveLocked(pin)
	if s == nil {
		return nil, Identity{}, ErrSessionNotFound
	}
	return s.audience(), s.identity, nil
}

// Binding returns the PIN and role bound to a connection.
func (r *Registry) Binding(id string) (string, Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[id]
	if !ok {
		return "", 0, false
	}
	return b.pin, b.role, true
}

// Sweep removes every session whose expiry is at or before now and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for pin, s := range r.sessions {
		if !s.liveAt(now) {
			delete(r.sessions, pin)
			metrics.RecordSessionRemoved("expired")
			removed++
		}
	}
	return removed
}

// Delete removes a session regardless of expiry.
func (r *Registry) Delete(pin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[pin]; !exists {
		return ErrSessionNotFound
	}
	delete(r.sessions, pin)
	metrics.RecordSessionRemoved("deleted")

	r.log.Info().Str("pin", pin).Msg("session deleted")
	return nil
}

// List returns snapshots of all live sessions.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	result := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.liveAt(now) {
			result = append(result, s.info())
		}
	}
	return result
}

// Count returns the number of live sessions, the same set List reports.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	live := 0
	for _, s := range r.sessions {
		if s.liveAt(now) {
			live++
		}
	}
	return live
}

// Len returns the number of sessions held, including expired ones the sweep
// has not removed yet.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Now returns the registry clock.
func (r *Registry) Now() time.Time { return r.now() }

func (r *Registry) liveLocked(pin string) *Session {
	if !ValidPIN(pin) {
		return nil
	}
	s, exists := r.sessions[pin]
	if !exists || !s.liveAt(r.now()) {
		return nil
	}
	return s
}

// unbindLocked drops the binding for id and clears the matching slot on the
// session it pointed to. The binding keeps the session pointer, so a PIN that
// was swept and reissued never detaches from the newer session.
func (r *Registry) unbindLocked(id string) bool {
	b, ok := r.bindings[id]
	if !ok {
		return false
	}
	delete(r.bindings, id)

	switch b.role {
	case RoleSharer:
		if b.session.sharer != nil && b.session.sharer.ID() == id {
			b.session.sharer = nil
		}
	case RoleViewer:
		delete(b.session.viewers, id)
	}

	r.log.Debug().Str("pin", b.pin).Str("conn", id).Stringer("role", b.role).Msg("connection detached")
	return true
}
