package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/agents/assistant"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	promptx "github.com/tanpawarit/Chative-Voice-Commerce/agent/prompt"
)

const (
	FallbackReply    = "Sorry, I had trouble with that. Could you say it again?"
	FallbackFarewell = "Thanks for visiting. Goodbye!"
)

// Runner is the assistant side of a turn.
type Runner interface {
	Entry(ctx context.Context, ctrl *handoff.Controller) (assistant.Reply, bool, error)
	Turn(ctx context.Context, ctrl *handoff.Controller, text string) (assistant.Reply, error)
	Instruct(ctx context.Context, ctrl *handoff.Controller, name promptx.Name) (assistant.Reply, error)
}

// RunDriver runs the model. Model failures and runaway tool loops turn into a
// spoken apology so the user is never left without an answer.
func RunDriver(ctx context.Context, in *GraphState, runner Runner) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	var (
		reply assistant.Reply
		err   error
	)
	switch in.Kind {
	case TurnStart:
		reply, in.Ran, err = runner.Entry(ctx, in.Controller)
	case TurnInput:
		reply, err = runner.Turn(ctx, in.Controller, in.Text)
		in.Ran = true
	case TurnInstruct:
		reply, err = runner.Instruct(ctx, in.Controller, in.Prompt)
		in.Ran = true
	}
	in.Reply = reply

	if err == nil {
		return in, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, assistant.ErrStepLimit) && !errors.Is(err, contractx.ErrModelInvoke) {
		return nil, err
	}

	log.Error().
		Err(err).
		Str("session_id", in.Controller.Session().SessionID).
		Str("role", string(in.Controller.Role().Kind)).
		Msg("assistant turn failed, replying with fallback")
	in.DriverErr = err
	in.Reply.Text = FallbackReply
	if in.Controller.Terminated() {
		in.Reply.Text = FallbackFarewell
	}
	in.Ran = true
	return in, nil
}
