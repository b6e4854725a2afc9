package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanpawarit/Chative-Voice-Commerce/agent/agents/assistant"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	promptx "github.com/tanpawarit/Chative-Voice-Commerce/agent/prompt"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrSessionClosed  = errors.New("conversation is closed")
)

type TurnKind string

const (
	// TurnStart runs the pending entry reply (the greeting on a new session).
	TurnStart TurnKind = "start"
	// TurnInput answers a user message.
	TurnInput TurnKind = "input"
	// TurnInstruct speaks on the assistant's own initiative, e.g. the idle prompts.
	TurnInstruct TurnKind = "instruct"
)

type GraphInput struct {
	Kind   TurnKind
	Text   string
	Prompt promptx.Name
}

type GraphOutput struct {
	Reply      string
	Role       handoff.RoleKind
	ToolCalls  []string
	Terminated bool
	Fallback   bool
}

type GraphState struct {
	Kind   TurnKind
	Text   string
	Prompt promptx.Name
	Now    time.Time

	Controller *handoff.Controller
	Mode       contractx.Mode

	Reply     assistant.Reply
	Ran       bool
	DriverErr error
}

func ValidateRequest(in GraphInput, ctrl *handoff.Controller, nowFn func() time.Time) (*GraphState, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("%w: controller is required", contractx.ErrValidation)
	}

	state := &GraphState{
		Kind:       in.Kind,
		Now:        nowFn().UTC(),
		Controller: ctrl,
		Mode:       ctrl.Session().Mode,
	}
	switch in.Kind {
	case TurnStart:
	case TurnInput:
		state.Text = strings.TrimSpace(in.Text)
		if state.Text == "" {
			return nil, ErrInvalidMessage
		}
	case TurnInstruct:
		if strings.TrimSpace(string(in.Prompt)) == "" {
			return nil, fmt.Errorf("%w: instruction prompt is required", contractx.ErrValidation)
		}
		state.Prompt = in.Prompt
	default:
		return nil, fmt.Errorf("%w: unknown turn kind %q", contractx.ErrValidation, in.Kind)
	}
	return state, nil
}

// EnsureLive refuses turns once the conversation closed or reached Terminated.
func EnsureLive(in *GraphState, closed func() bool) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if closed != nil && closed() {
		return nil, ErrSessionClosed
	}
	if in.Controller.Terminated() {
		return nil, contractx.ErrSessionTerminated
	}
	return in, nil
}
