package handoff

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
)

var ErrIllegalTransition = errors.New("illegal role transition")

// Handler executes one tool call on behalf of the active role.
type Handler func(ctx context.Context, scope *Scope, args map[string]any) (contractx.ToolResult, error)

type Binding struct {
	Name    string
	Handler Handler
}

// Table maps each role kind to the tools it exposes, in presentation order.
type Table map[RoleKind][]Binding

func (t Table) lookup(kind RoleKind, name string) (Handler, bool) {
	for _, b := range t[kind] {
		if b.Name == name {
			return b.Handler, true
		}
	}
	return nil, false
}

// Scope is what a handler may touch: the session, the controller and the role
// that was active when the call was dispatched.
type Scope struct {
	Session    *statex.SessionState
	Controller *Controller
	Role       Role
}

type TransitionFunc func(from, to Role)

type Controller struct {
	mu      sync.Mutex
	session *statex.SessionState
	table   Table
	history *History
	role    Role
	order   *statex.OrderState
	entered bool

	listeners []TransitionFunc
}

type Option func(*Controller)

func WithHistory(h *History) Option {
	return func(c *Controller) {
		if h != nil {
			c.history = h
		}
	}
}

func OnTransition(fn TransitionFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// NewController starts in Discovery with its entry hook pending.
func NewController(session *statex.SessionState, table Table, opts ...Option) (*Controller, error) {
	if session == nil {
		return nil, statex.ErrNilSessionState
	}
	if len(table) == 0 {
		return nil, errors.New("tool table is empty")
	}
	c := &Controller{
		session: session,
		table:   table,
		history: NewHistory(),
		role:    Discovery(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Controller) Terminated() bool {
	return c.Role().Kind == KindTerminated
}

// History is the same value for the whole conversation.
func (c *Controller) History() *History {
	return c.history
}

func (c *Controller) Session() *statex.SessionState {
	return c.session
}

// Tools lists the tool names offered by the active role.
func (c *Controller) Tools() []string {
	c.mu.Lock()
	kind := c.role.Kind
	c.mu.Unlock()

	bindings := c.table[kind]
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.Name)
	}
	return names
}

// Order returns the order projection of the active order role, nil outside one.
func (c *Controller) Order() *statex.OrderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// SetOrder replaces the order projection wholesale.
func (c *Controller) SetOrder(st *statex.OrderState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.role.Kind.IsOrder() {
		return fmt.Errorf("%w: no active order", contractx.ErrToolNotAllowed)
	}
	c.order = st
	return nil
}

// Transition swaps the live role. The previous order projection is discarded and
// the dialogue history is kept.
func (c *Controller) Transition(to Role) error {
	if err := to.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	from := c.role
	if !Allowed(from.Kind, to.Kind) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from.Kind, to.Kind)
	}
	c.role = to
	c.order = nil
	if to.Kind.IsOrder() {
		c.order = &statex.OrderState{}
	}
	c.entered = false
	listeners := append([]TransitionFunc(nil), c.listeners...)
	c.mu.Unlock()

	log.Info().
		Str("session_id", c.session.SessionID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("role transition")

	for _, fn := range listeners {
		fn(from, to)
	}
	return nil
}

// TakeEntry returns the active role once after each transition (and once at start)
// so the driver can run its entry reply.
func (c *Controller) TakeEntry() (Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entered {
		return Role{}, false
	}
	c.entered = true
	return c.role, true
}

// Dispatch runs a tool call against the active role. Tools the role does not
// expose produce a tool_not_allowed failure and never reach a handler.
func (c *Controller) Dispatch(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	c.mu.Lock()
	role := c.role
	c.mu.Unlock()

	if role.Kind == KindTerminated {
		return contractx.Failure(req.Tool, contractx.ErrSessionTerminated), nil
	}

	handler, ok := c.table.lookup(role.Kind, req.Tool)
	if !ok {
		return contractx.Failure(req.Tool, fmt.Errorf("%w: %s in %s", contractx.ErrToolNotAllowed, req.Tool, role.Kind)), nil
	}

	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	return handler(ctx, &Scope{Session: c.session, Controller: c, Role: role}, args)
}
