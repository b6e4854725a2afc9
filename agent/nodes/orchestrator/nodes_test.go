package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tanpawarit/Chative-Voice-Commerce/agent/agents/assistant"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	promptx "github.com/tanpawarit/Chative-Voice-Commerce/agent/prompt"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/remote"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
)

type fakeRunner struct {
	reply assistant.Reply
	err   error
}

func (f *fakeRunner) Entry(ctx context.Context, ctrl *handoff.Controller) (assistant.Reply, bool, error) {
	return f.reply, f.err == nil, f.err
}

func (f *fakeRunner) Turn(ctx context.Context, ctrl *handoff.Controller, text string) (assistant.Reply, error) {
	return f.reply, f.err
}

func (f *fakeRunner) Instruct(ctx context.Context, ctrl *handoff.Controller, name promptx.Name) (assistant.Reply, error) {
	return f.reply, f.err
}

type fakePublisher struct {
	topics []string
	err    error
}

func (f *fakePublisher) Notify(typ, topic string, payload any) error {
	f.topics = append(f.topics, topic)
	return f.err
}

func newController(t *testing.T, mode string) *handoff.Controller {
	t.Helper()
	session, err := statex.NewSessionState("s-1", statex.Metadata{Mode: mode}, time.Now())
	if err != nil {
		t.Fatalf("NewSessionState() error = %v", err)
	}
	noop := func(ctx context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
		return contractx.Success("search_products", nil), nil
	}
	table := handoff.Table{handoff.KindDiscovery: {{Name: "search_products", Handler: noop}}}
	ctrl, err := handoff.NewController(session, table)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	ctrl := newController(t, "text")
	now := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	st, err := ValidateRequest(GraphInput{Kind: TurnInput, Text: "  hi "}, ctrl, now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.Text != "hi" || st.Mode != contractx.ModeText || !st.Now.Equal(now()) {
		t.Fatalf("state = %+v", st)
	}

	if _, err := ValidateRequest(GraphInput{Kind: TurnInput, Text: " "}, ctrl, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidMessage", err)
	}
	if _, err := ValidateRequest(GraphInput{Kind: TurnInstruct}, ctrl, now); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ValidateRequest() error = %v, want ErrValidation", err)
	}
	if _, err := ValidateRequest(GraphInput{Kind: "other"}, ctrl, now); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ValidateRequest() error = %v, want ErrValidation", err)
	}
	if _, err := ValidateRequest(GraphInput{Kind: TurnStart}, nil, now); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ValidateRequest() error = %v, want ErrValidation", err)
	}
}

func TestEnsureLive(t *testing.T) {
	t.Parallel()

	ctrl := newController(t, "voice")
	st := &GraphState{Controller: ctrl}

	if _, err := EnsureLive(st, func() bool { return false }); err != nil {
		t.Fatalf("EnsureLive() error = %v", err)
	}
	if _, err := EnsureLive(st, func() bool { return true }); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("EnsureLive() error = %v, want ErrSessionClosed", err)
	}

	if err := ctrl.Transition(handoff.Terminated()); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if _, err := EnsureLive(st, nil); !errors.Is(err, contractx.ErrSessionTerminated) {
		t.Fatalf("EnsureLive() error = %v, want ErrSessionTerminated", err)
	}
}

func TestRunDriverFallsBackOnModelFailures(t *testing.T) {
	t.Parallel()

	for _, cause := range []error{
		fmt.Errorf("%w: upstream 502", contractx.ErrModelInvoke),
		assistant.ErrStepLimit,
	} {
		st := &GraphState{Kind: TurnInput, Text: "hi", Controller: newController(t, "voice")}
		out, err := RunDriver(context.Background(), st, &fakeRunner{err: cause})
		if err != nil {
			t.Fatalf("RunDriver(%v) error = %v", cause, err)
		}
		if out.Reply.Text != FallbackReply || !errors.Is(out.DriverErr, cause) || !out.Ran {
			t.Fatalf("RunDriver(%v) state = %+v", cause, out)
		}
	}
}

func TestRunDriverFarewellFallbackAfterEndSession(t *testing.T) {
	t.Parallel()

	ctrl := newController(t, "voice")
	if err := ctrl.Transition(handoff.Terminated()); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	st := &GraphState{Kind: TurnInput, Text: "bye", Controller: ctrl}
	out, err := RunDriver(context.Background(), st, &fakeRunner{err: contractx.ErrModelInvoke})
	if err != nil {
		t.Fatalf("RunDriver() error = %v", err)
	}
	if out.Reply.Text != FallbackFarewell {
		t.Fatalf("Reply.Text = %q, want %q", out.Reply.Text, FallbackFarewell)
	}
}

func TestRunDriverPropagatesOtherErrors(t *testing.T) {
	t.Parallel()

	st := &GraphState{Kind: TurnInput, Text: "hi", Controller: newController(t, "voice")}
	if _, err := RunDriver(context.Background(), st, &fakeRunner{err: contractx.ErrValidation}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("RunDriver() error = %v, want ErrValidation", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st = &GraphState{Kind: TurnInput, Text: "hi", Controller: newController(t, "voice")}
	if _, err := RunDriver(ctx, st, &fakeRunner{err: contractx.ErrModelInvoke}); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunDriver() error = %v, want context.Canceled", err)
	}
}

func TestPublishReplyTopics(t *testing.T) {
	t.Parallel()

	ctrl := newController(t, "text")
	pub := &fakePublisher{err: contractx.ErrNoPeer}
	st := &GraphState{Kind: TurnInput, Text: "hi", Mode: contractx.ModeText, Controller: ctrl, Reply: assistant.Reply{Text: "hello"}}
	if _, err := PublishReply(st, pub); err != nil {
		t.Fatalf("PublishReply() error = %v", err)
	}
	if len(pub.topics) != 2 || pub.topics[0] != remote.TopicUserInput || pub.topics[1] != remote.TopicAssistantTranscription {
		t.Fatalf("text topics = %v", pub.topics)
	}

	pub = &fakePublisher{}
	st = &GraphState{Kind: TurnInput, Text: "hi", Mode: contractx.ModeVoice, Controller: ctrl, Reply: assistant.Reply{Text: "hello"}}
	if _, err := PublishReply(st, pub); err != nil {
		t.Fatalf("PublishReply() error = %v", err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != remote.TopicAssistantSpeech {
		t.Fatalf("voice topics = %v", pub.topics)
	}

	// an empty reply publishes nothing on the assistant side
	pub = &fakePublisher{}
	st = &GraphState{Kind: TurnStart, Mode: contractx.ModeVoice, Controller: ctrl}
	if _, err := PublishReply(st, pub); err != nil {
		t.Fatalf("PublishReply() error = %v", err)
	}
	if len(pub.topics) != 0 {
		t.Fatalf("empty reply topics = %v", pub.topics)
	}
}

func TestFinalizeReply(t *testing.T) {
	t.Parallel()

	ctrl := newController(t, "voice")
	st := &GraphState{Controller: ctrl, Reply: assistant.Reply{Text: " done ", ToolCalls: []string{"search_products"}}, DriverErr: assistant.ErrStepLimit}
	out, err := FinalizeReply(st)
	if err != nil {
		t.Fatalf("FinalizeReply() error = %v", err)
	}
	if out.Reply != "done" || out.Role != handoff.KindDiscovery || out.Terminated || !out.Fallback || len(out.ToolCalls) != 1 {
		t.Fatalf("output = %+v", out)
	}
}
