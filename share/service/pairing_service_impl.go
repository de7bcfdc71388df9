package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/metrics"
	"github.com/wricardo/pinshare/share/protocol"
	"github.com/wricardo/pinshare/share/session"
)

// pairingServiceImpl implements the PairingService interface
type pairingServiceImpl struct {
	registry Registry
	log      zerolog.Logger
}

// NewPairingService creates a new pairing service instance
func NewPairingService(registry Registry, log zerolog.Logger) PairingService {
	return &pairingServiceImpl{
		registry: registry,
		log:      logging.Component(log, "pairing-service"),
	}
}

// CreateSession opens a session with sharer as its source
func (s *pairingServiceImpl) CreateSession(ctx context.Context, sharer session.Peer, req protocol.CreateRequest) (*protocol.PinMessage, error) {
	ticket, err := s.registry.Create(req.Name, req.Avatar, sharer)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	msg := protocol.NewPin(ticket.PIN, ticket.ExpiresAt)
	return &msg, nil
}

// JoinSession subscribes viewer to the session behind pin
func (s *pairingServiceImpl) JoinSession(ctx context.Context, viewer session.Peer, pin string) (*protocol.SuccessMessage, error) {
	identity, err := s.registry.Join(pin, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to join session %s: %w", pin, err)
	}

	msg := protocol.NewSuccess(identity.Name, identity.Avatar)
	return &msg, nil
}

// ShareLocation relays one update to every viewer of the session. The message
// is encoded once; viewers whose queues are closed or full are skipped.
func (s *pairingServiceImpl) ShareLocation(ctx context.Context, update protocol.LocationUpdate) (*FanoutResult, error) {
	viewers, identity, err := s.registry.Audience(update.PIN)
	if err != nil {
		metrics.RecordLocationDropped()
		return nil, fmt.Errorf("failed to share location for %s: %w", update.PIN, err)
	}

	data, err := protocol.Encode(protocol.NewLocation(update.Lat, update.Lng, identity.Name, identity.Avatar))
	if err != nil {
		return nil, err
	}

	result := &FanoutResult{PIN: update.PIN}
	for _, viewer := range viewers {
		if viewer.Send(data) {
			result.Delivered++
			continue
		}
		result.Skipped++
		s.log.Debug().Str("pin", update.PIN).Str("conn", viewer.ID()).Msg("viewer skipped")
	}
	metrics.RecordFanout(result.Delivered, result.Skipped)

	return result, nil
}

// Detach releases the connection's session binding
func (s *pairingServiceImpl) Detach(ctx context.Context, peer session.Peer) bool {
	return s.registry.Detach(peer)
}

// ListSessions returns all live sessions, newest first
func (s *pairingServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	infos := s.registry.List()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	now := s.registry.Now()
	result := make([]*SessionInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, toSessionInfo(info, now))
	}
	return result, nil
}

// GetSession retrieves session information
func (s *pairingServiceImpl) GetSession(ctx context.Context, pin string) (*SessionInfo, error) {
	if !session.ValidPIN(pin) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPIN, pin)
	}

	info, err := s.registry.Lookup(pin)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", pin, err)
	}
	return toSessionInfo(info, s.registry.Now()), nil
}

// EndSession deletes a session before it expires. Bound connections stay
// open but their messages no longer route anywhere.
func (s *pairingServiceImpl) EndSession(ctx context.Context, pin string) error {
	if !session.ValidPIN(pin) {
		return fmt.Errorf("%w: %q", ErrInvalidPIN, pin)
	}
	if err := s.registry.Delete(pin); err != nil {
		return fmt.Errorf("failed to end session %s: %w", pin, err)
	}
	return nil
}

// SessionCount returns the number of live sessions, as reported by /health.
func (s *pairingServiceImpl) SessionCount(ctx context.Context) int {
	return s.registry.Count()
}

func toSessionInfo(info session.Info, now time.Time) *SessionInfo {
	remaining := info.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &SessionInfo{
		Info:      info,
		ExpiresIn: remaining.Truncate(time.Second).String(),
	}
}
