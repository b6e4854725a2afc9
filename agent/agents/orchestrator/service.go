package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	nodex "github.com/tanpawarit/Chative-Voice-Commerce/agent/nodes/orchestrator"
	promptx "github.com/tanpawarit/Chative-Voice-Commerce/agent/prompt"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/remote"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
	toolx "github.com/tanpawarit/Chative-Voice-Commerce/agent/tool"
	logx "github.com/tanpawarit/Chative-Voice-Commerce/pkg/logger"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrSessionClosed  = nodex.ErrSessionClosed
)

const (
	closeReasonEnded = "session_ended"
	closeReasonIdle  = "idle_timeout"
	userStateAway    = "away"
)

// IdleConfig controls what happens after the user goes away: a presence check, then
// a farewell after Grace, then the session closes after CloseDelay.
type IdleConfig struct {
	Grace      time.Duration `split_words:"true" default:"25s"`
	CloseDelay time.Duration `split_words:"true" default:"25s"`
}

type Config struct {
	Timeouts  toolx.Timeouts
	Threshold float64
	Idle      IdleConfig
}

type Deps struct {
	Runner  nodex.Runner
	Catalog contractx.CatalogGateway
	Events  contractx.OrderEventSink
}

// Surface is the browser side of a conversation.
type Surface interface {
	contractx.RemoteSurface
	Notify(typ, topic string, payload any) error
	CloseAll(reason string)
}

type Option func(*Conversation)

func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTimer replaces time.After for the idle policy.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Conversation) {
		if after != nil {
			c.after = after
		}
	}
}

type idleRun struct {
	cancel context.CancelFunc
}

// Conversation is the single execution context of one session: turns run one at a
// time against the session's controller.
type Conversation struct {
	session *statex.SessionState
	ctrl    *handoff.Controller
	runner  nodex.Runner
	surface Surface
	logger  zerolog.Logger

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	turnMu      sync.Mutex

	idle  IdleConfig
	after func(time.Duration) <-chan time.Time
	now   func() time.Time

	mu        sync.Mutex
	closed    bool
	idleRun   *idleRun
	closeOnce sync.Once
}

var _ remote.SessionHandler = (*Conversation)(nil)

func New(sessionID string, meta statex.Metadata, surface Surface, deps Deps, cfg Config, opts ...Option) (*Conversation, error) {
	if surface == nil {
		return nil, errors.New("remote surface is required")
	}
	if deps.Runner == nil {
		return nil, errors.New("assistant runner is required")
	}

	c := &Conversation{
		runner:  deps.Runner,
		surface: surface,
		logger:  logx.ForSession(sessionID),
		idle:    cfg.Idle,
		after:   time.After,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.idle.Grace <= 0 {
		c.idle.Grace = 25 * time.Second
	}
	if c.idle.CloseDelay <= 0 {
		c.idle.CloseDelay = 25 * time.Second
	}

	session, err := statex.NewSessionState(sessionID, meta, c.now())
	if err != nil {
		return nil, err
	}
	table, err := toolx.Table(toolx.Deps{
		Remote:    surface,
		Catalog:   deps.Catalog,
		Events:    deps.Events,
		Timeouts:  cfg.Timeouts,
		Threshold: cfg.Threshold,
		Now:       c.now,
	})
	if err != nil {
		return nil, err
	}
	ctrl, err := handoff.NewController(session, table, handoff.OnTransition(func(_, to handoff.Role) {
		c.publishState(to)
	}))
	if err != nil {
		return nil, err
	}
	c.session = session
	c.ctrl = ctrl

	graphRunner, err := c.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.graphRunner = graphRunner

	return c, nil
}

// NewFactory adapts New to the hub's session factory.
func NewFactory(deps Deps, cfg Config, opts ...Option) remote.SessionFactory {
	return func(_ context.Context, sessionID string, meta statex.Metadata, surface *remote.Surface) (remote.SessionHandler, error) {
		return New(sessionID, meta, surface, deps, cfg, opts...)
	}
}

func (c *Conversation) Controller() *handoff.Controller {
	return c.ctrl
}

func (c *Conversation) Session() *statex.SessionState {
	return c.session
}

// Start announces the initial role and speaks the greeting.
func (c *Conversation) Start(ctx context.Context) error {
	c.publishState(c.ctrl.Role())
	_, err := c.invoke(ctx, nodex.GraphInput{Kind: nodex.TurnStart})
	return err
}

func (c *Conversation) HandleUserInput(ctx context.Context, text string) error {
	c.cancelIdle()
	out, err := c.invoke(ctx, nodex.GraphInput{Kind: nodex.TurnInput, Text: text})
	if err != nil {
		return err
	}
	c.logger.Debug().
		Str("role", string(out.Role)).
		Strs("tools", out.ToolCalls).
		Bool("fallback", out.Fallback).
		Msg("turn completed")
	return nil
}

// HandleUserState starts the idle policy when the user goes away and cancels it on
// any other state.
func (c *Conversation) HandleUserState(ctx context.Context, state string) {
	if state == userStateAway {
		c.startIdle(ctx)
		return
	}
	c.cancelIdle()
}

// Close is called once no peer is attached anymore.
func (c *Conversation) Close(context.Context) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancelIdle()
	c.logger.Info().Str("role", string(c.ctrl.Role().Kind)).Msg("conversation closed")
}

func (c *Conversation) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conversation) invoke(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nodex.GraphOutput{}, err
	}
	out, err := c.graphRunner.Invoke(ctx, in)
	if err != nil {
		return nodex.GraphOutput{}, err
	}
	c.session.Touch(c.now())
	if out.Terminated {
		c.shutdown(closeReasonEnded)
	}
	return out, nil
}

func (c *Conversation) startIdle(parent context.Context) {
	c.mu.Lock()
	if c.closed || c.idleRun != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	run := &idleRun{cancel: cancel}
	c.idleRun = run
	c.mu.Unlock()

	c.logger.Debug().Msg("user away, idle policy started")
	go c.watchIdle(ctx, run)
}

func (c *Conversation) cancelIdle() {
	c.mu.Lock()
	run := c.idleRun
	c.idleRun = nil
	c.mu.Unlock()
	if run != nil {
		run.cancel()
	}
}

func (c *Conversation) watchIdle(ctx context.Context, run *idleRun) {
	defer func() {
		c.mu.Lock()
		if c.idleRun == run {
			c.idleRun = nil
		}
		c.mu.Unlock()
		run.cancel()
	}()

	steps := []struct {
		prompt promptx.Name
		wait   time.Duration
	}{
		{promptx.Presence, c.idle.Grace},
		{promptx.IdleFarewell, c.idle.CloseDelay},
	}
	for _, step := range steps {
		if _, err := c.invoke(ctx, nodex.GraphInput{Kind: nodex.TurnInstruct, Prompt: step.prompt}); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Str("prompt", string(step.prompt)).Msg("idle prompt failed")
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.after(step.wait):
		}
	}
	c.shutdown(closeReasonIdle)
}

// shutdown tells the browser the session is over and drops its sockets.
func (c *Conversation) shutdown(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.logger.Info().Str("reason", reason).Msg("ending conversation")
		c.surface.CloseAll(reason)
	})
}

func (c *Conversation) publishState(role handoff.Role) {
	state := remote.AgentState{Role: string(role.Kind), Tools: c.ctrl.Tools()}
	if role.Kind.IsOrder() {
		state.ProductID = role.Product.ID
		state.ProductType = string(role.Product.Type)
		state.ProductName = role.ProductName
	}
	if err := c.surface.Notify(remote.TypeAgentState, "", state); err != nil {
		c.logger.Debug().Err(err).Str("role", state.Role).Msg("publish agent state")
	}
}
