package orchestratornode

import (
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/remote"
)

// Publisher pushes one-way envelopes to the browser.
type Publisher interface {
	Notify(typ, topic string, payload any) error
}

// PublishReply mirrors the turn to the browser. Text sessions get both sides as
// transcripts; voice sessions get the reply to speak. A missing peer is not an error.
func PublishReply(in *GraphState, pub Publisher) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	send := func(topic, role, text string) {
		if text == "" {
			return
		}
		if err := pub.Notify(remote.TypeTranscript, topic, remote.Transcript{Role: role, Text: text}); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", in.Controller.Session().SessionID).
				Str("topic", topic).
				Msg("publish transcript")
		}
	}

	if in.Mode == contractx.ModeText {
		if in.Kind == TurnInput {
			send(remote.TopicUserInput, "user", in.Text)
		}
		send(remote.TopicAssistantTranscription, "assistant", in.Reply.Text)
		return in, nil
	}
	send(remote.TopicAssistantSpeech, "assistant", in.Reply.Text)
	return in, nil
}
