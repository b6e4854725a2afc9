package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

const defaultCallTimeout = 15 * time.Second

// Peer is one attached browser connection.
type Peer interface {
	ID() string
	Send(env Envelope) error
	Close() error
}

type attachedPeer struct {
	peer Peer
	gone chan struct{}
}

// Surface is the RemoteSurface of one conversation. The first attached peer is the target
// of every call. Calls are serialized so at most one RPC is outstanding.
type Surface struct {
	sessionID string

	mu      sync.Mutex
	peers   []*attachedPeer
	pending map[string]chan Envelope

	callMu sync.Mutex

	defaultTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

var _ contractx.RemoteSurface = (*Surface)(nil)

type SurfaceOption func(*Surface)

func WithDefaultTimeout(d time.Duration) SurfaceOption {
	return func(s *Surface) {
		if d > 0 {
			s.defaultTimeout = d
		}
	}
}

func WithClock(now func() time.Time) SurfaceOption {
	return func(s *Surface) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSurface(sessionID string, opts ...SurfaceOption) *Surface {
	s := &Surface{
		sessionID:      sessionID,
		pending:        make(map[string]chan Envelope),
		defaultTimeout: defaultCallTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Surface) SessionID() string {
	return s.sessionID
}

func (s *Surface) Attach(p Peer) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.peers = append(s.peers, &attachedPeer{peer: p, gone: make(chan struct{})})
	count := len(s.peers)
	s.mu.Unlock()

	log.Info().Str("session_id", s.sessionID).Str("peer_id", p.ID()).Int("peers", count).Msg("remote peer attached")
}

// Detach removes a peer. Calls waiting on it fail with ErrRemote.
func (s *Surface) Detach(p Peer) int {
	if p == nil {
		return s.PeerCount()
	}
	s.mu.Lock()
	kept := s.peers[:0]
	for _, ap := range s.peers {
		if ap.peer == p {
			close(ap.gone)
			continue
		}
		kept = append(kept, ap)
	}
	s.peers = kept
	count := len(s.peers)
	s.mu.Unlock()

	log.Info().Str("session_id", s.sessionID).Str("peer_id", p.ID()).Int("peers", count).Msg("remote peer detached")
	return count
}

func (s *Surface) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Surface) target() (*attachedPeer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) == 0 {
		return nil, fmt.Errorf("%w: session=%s", contractx.ErrNoPeer, s.sessionID)
	}
	return s.peers[0], nil
}

// Call performs a request/response RPC. It never retries.
func (s *Surface) Call(ctx context.Context, method string, payload any, timeout time.Duration) (json.RawMessage, error) {
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("%w: rpc method is empty", contractx.ErrValidation)
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	target, err := s.target()
	if err != nil {
		return nil, err
	}

	env, err := newEnvelope(TypeRPCRequest, payload, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	env.ID = s.newID()
	env.Method = method

	replies := make(chan Envelope, 1)
	s.mu.Lock()
	s.pending[env.ID] = replies
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, env.ID)
		s.mu.Unlock()
	}()

	started := s.now()
	if err := target.peer.Send(env); err != nil {
		return nil, fmt.Errorf("%w: send %s: %v", contractx.ErrRemote, method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-replies:
		log.Debug().
			Str("session_id", s.sessionID).
			Str("method", method).
			Dur("elapsed", s.now().Sub(started)).
			Msg("rpc response")
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", contractx.ErrRemote, method, resp.Error)
		}
		if len(resp.Payload) > 0 && !json.Valid(resp.Payload) {
			return nil, fmt.Errorf("%w: %s: malformed response", contractx.ErrRemote, method)
		}
		return resp.Payload, nil
	case <-target.gone:
		return nil, fmt.Errorf("%w: %s: peer disconnected", contractx.ErrRemote, method)
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", contractx.ErrTimeout, method, timeout)
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrTimeout, method, err)
		}
		return nil, err
	}
}

// Navigate sends a redirect command. Only dispatch is acknowledged.
func (s *Surface) Navigate(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: url is empty", contractx.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.target()
	if err != nil {
		return err
	}

	env, err := newEnvelope(TypeCommand, map[string]string{"url": url}, s.now())
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	env.ID = s.newID()
	env.Method = MethodRedirectToPage

	if err := target.peer.Send(env); err != nil {
		return fmt.Errorf("%w: %s: %v", contractx.ErrRemote, MethodRedirectToPage, err)
	}
	return nil
}

// Notify pushes a one-way message (transcripts, agent state) to the target peer.
func (s *Surface) Notify(typ, topic string, payload any) error {
	target, err := s.target()
	if err != nil {
		return err
	}
	env, err := newEnvelope(typ, payload, s.now())
	if err != nil {
		return err
	}
	env.Topic = topic
	if err := target.peer.Send(env); err != nil {
		return fmt.Errorf("%w: notify %s: %v", contractx.ErrRemote, typ, err)
	}
	return nil
}

// Deliver routes an rpc_response to its waiting call. Late responses are dropped.
func (s *Surface) Deliver(env Envelope) bool {
	if env.Type != TypeRPCResponse || env.ID == "" {
		return false
	}
	s.mu.Lock()
	replies, ok := s.pending[env.ID]
	s.mu.Unlock()
	if !ok {
		log.Warn().Str("session_id", s.sessionID).Str("rpc_id", env.ID).Msg("dropping rpc response without a waiting call")
		return false
	}
	select {
	case replies <- env:
		return true
	default:
		return false
	}
}

// CloseAll tells every peer the session ended and closes it.
func (s *Surface) CloseAll(reason string) {
	s.mu.Lock()
	peers := make([]*attachedPeer, len(s.peers))
	copy(peers, s.peers)
	s.mu.Unlock()

	for _, ap := range peers {
		env, err := newEnvelope(TypeSessionClosed, map[string]string{"reason": reason}, s.now())
		if err == nil {
			_ = ap.peer.Send(env)
		}
		if err := ap.peer.Close(); err != nil {
			log.Debug().Err(err).Str("session_id", s.sessionID).Msg("close peer")
		}
	}
}
