package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	role := in.Controller.Role()
	return GraphOutput{
		Reply:      strings.TrimSpace(in.Reply.Text),
		Role:       role.Kind,
		ToolCalls:  in.Reply.ToolCalls,
		Terminated: role.Kind == handoff.KindTerminated,
		Fallback:   in.DriverErr != nil,
	}, nil
}
