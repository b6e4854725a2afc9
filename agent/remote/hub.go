package remote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
)

const writeWait = 10 * time.Second

type Config struct {
	RPCTimeout time.Duration `split_words:"true" default:"15s"`
	WriteWait  time.Duration `split_words:"true" default:"10s"`
}

// SessionHandler is the conversation bound to a session socket.
type SessionHandler interface {
	Start(ctx context.Context) error
	HandleUserInput(ctx context.Context, text string) error
	HandleUserState(ctx context.Context, state string)
	Close(ctx context.Context)
}

// SessionFactory builds the conversation for a new session. The surface already has the
// first peer attached when it is called.
type SessionFactory func(ctx context.Context, sessionID string, meta statex.Metadata, surface *Surface) (SessionHandler, error)

type hubSession struct {
	surface *Surface
	handler SessionHandler
	inputs  *inbox
	cancel  context.CancelFunc
	ctx     context.Context
}

// run is the only goroutine that drives the handler's turns: the greeting first,
// then user input in the order it was read off the sockets.
func (s *hubSession) run(logger zerolog.Logger) {
	if err := s.handler.Start(s.ctx); err != nil {
		logger.Error().Err(err).Msg("start session")
	}
	s.inputs.drain(s.ctx, func(text string) {
		if err := s.handler.HandleUserInput(s.ctx, text); err != nil {
			logger.Warn().Err(err).Msg("handle user input")
		}
	})
}

// Hub accepts browser sockets on /ws/session/:id and binds them to conversations.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*hubSession

	factory SessionFactory
	cfg     Config
}

func NewHub(factory SessionFactory, cfg Config) (*Hub, error) {
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = writeWait
	}
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = defaultCallTimeout
	}
	return &Hub{
		sessions: make(map[string]*hubSession),
		factory:  factory,
		cfg:      cfg,
	}, nil
}

func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/session/:id", websocket.New(h.handleSession))
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Surface returns the surface of a live session.
func (h *Hub) Surface(sessionID string) (*Surface, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.surface, true
}

func metadataFrom(c *websocket.Conn) statex.Metadata {
	var categories []string
	if raw := strings.TrimSpace(c.Query("categories")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				categories = append(categories, part)
			}
		}
	}
	return statex.Metadata{
		WebsiteName:        c.Query("website_name"),
		WebsiteDescription: c.Query("description_website"),
		Host:               c.Query("host"),
		Language:           c.Query("language"),
		Currency:           c.Query("currency"),
		DatabaseName:       c.Query("database_name"),
		Mode:               c.Query("mode"),
		Categories:         categories,
	}
}

func (h *Hub) handleSession(c *websocket.Conn) {
	sessionID := strings.TrimSpace(c.Params("id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	peer := &wsPeer{id: uuid.NewString(), conn: c, writeWait: h.cfg.WriteWait}
	logger := log.With().Str("session_id", sessionID).Str("peer_id", peer.id).Logger()

	sess, created, err := h.attach(sessionID, peer, metadataFrom(c))
	if err != nil {
		logger.Error().Err(err).Msg("open session")
		_ = peer.Close()
		return
	}
	if created {
		go sess.run(log.With().Str("session_id", sessionID).Logger())
	}
	defer h.detach(sessionID, sess, peer)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("session socket closed")
			return
		}
		env, err := ParseEnvelope(data)
		if err != nil {
			logger.Warn().Err(err).Msg("ignore malformed envelope")
			continue
		}
		h.dispatch(sess, peer, env)
	}
}

func (h *Hub) attach(sessionID string, peer *wsPeer, meta statex.Metadata) (*hubSession, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sess, ok := h.sessions[sessionID]; ok {
		sess.surface.Attach(peer)
		return sess, false, nil
	}

	surface := NewSurface(sessionID, WithDefaultTimeout(h.cfg.RPCTimeout))
	surface.Attach(peer)

	ctx, cancel := context.WithCancel(context.Background())
	handler, err := h.factory(ctx, sessionID, meta, surface)
	if err != nil {
		cancel()
		surface.Detach(peer)
		return nil, false, err
	}

	sess := &hubSession{surface: surface, handler: handler, inputs: newInbox(), ctx: ctx, cancel: cancel}
	h.sessions[sessionID] = sess
	return sess, true, nil
}

func (h *Hub) detach(sessionID string, sess *hubSession, peer *wsPeer) {
	if sess.surface.Detach(peer) > 0 {
		return
	}

	h.mu.Lock()
	if cur, ok := h.sessions[sessionID]; ok && cur == sess {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()

	sess.handler.Close(context.Background())
	sess.cancel()
}

func (h *Hub) dispatch(sess *hubSession, peer *wsPeer, env Envelope) {
	switch env.Type {
	case TypeRPCResponse:
		sess.surface.Deliver(env)
	case TypeUserInput:
		var in UserInput
		if err := json.Unmarshal(env.Payload, &in); err != nil {
			log.Warn().Err(err).Str("session_id", sess.surface.SessionID()).Msg("decode user input")
			return
		}
		sess.inputs.push(in.Text)
	case TypeUserState:
		var st UserState
		if err := json.Unmarshal(env.Payload, &st); err != nil {
			log.Warn().Err(err).Str("session_id", sess.surface.SessionID()).Msg("decode user state")
			return
		}
		sess.handler.HandleUserState(sess.ctx, st.State)
	case TypePing:
		_ = peer.Send(Envelope{Type: TypePong, ID: env.ID, Timestamp: time.Now().UnixMilli()})
	default:
		log.Debug().Str("type", env.Type).Msg("ignore envelope")
	}
}

// wsPeer serializes writes to one socket.
type wsPeer struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

func (p *wsPeer) ID() string {
	return p.id
}

func (p *wsPeer) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("peer is closed")
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *wsPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}
