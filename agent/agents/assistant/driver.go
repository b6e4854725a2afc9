package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	promptx "github.com/tanpawarit/Chative-Voice-Commerce/agent/prompt"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
	toolx "github.com/tanpawarit/Chative-Voice-Commerce/agent/tool"
	logx "github.com/tanpawarit/Chative-Voice-Commerce/pkg/logger"
)

const defaultMaxSteps = 8

var ErrStepLimit = errors.New("tool step limit reached")

// Reply is the outcome of one driver run.
type Reply struct {
	Text      string
	Role      handoff.Role
	ToolCalls []string
	Steps     int
}

func (r Reply) Terminated() bool {
	return r.Role.Kind == handoff.KindTerminated
}

// Driver runs the active role's model against the shared history, executing tool
// calls through the controller until the model answers in text.
type Driver struct {
	models   ModelSource
	prompts  *promptx.Set
	tools    *toolx.Registry
	maxSteps int
}

func NewDriver(models ModelSource, prompts *promptx.Set, tools *toolx.Registry, maxSteps int) (*Driver, error) {
	if models == nil {
		return nil, errors.New("model source is required")
	}
	if prompts == nil {
		prompts = promptx.Load()
	}
	if tools == nil {
		tools = toolx.Load()
	}
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Driver{models: models, prompts: prompts, tools: tools, maxSteps: maxSteps}, nil
}

// Turn records the user's words and answers them.
func (d *Driver) Turn(ctx context.Context, ctrl *handoff.Controller, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}
	ctrl.History().Append(schema.UserMessage(text))
	return d.run(ctx, ctrl, "")
}

// Entry runs the entry reply of the active role if one is pending.
func (d *Driver) Entry(ctx context.Context, ctrl *handoff.Controller) (Reply, bool, error) {
	role, ok := ctrl.TakeEntry()
	if !ok {
		return Reply{Role: ctrl.Role()}, false, nil
	}
	instruction, err := d.entryInstruction(ctx, ctrl, role)
	if err != nil {
		return Reply{Role: role}, true, err
	}
	reply, err := d.run(ctx, ctrl, instruction)
	return reply, true, err
}

// Instruct produces a reply steered by a one-off instruction without user input.
func (d *Driver) Instruct(ctx context.Context, ctrl *handoff.Controller, name promptx.Name) (Reply, error) {
	instruction, err := d.prompts.Render(ctx, name, roleVars(ctrl.Session(), ctrl.Role()))
	if err != nil {
		return Reply{Role: ctrl.Role()}, err
	}
	return d.run(ctx, ctrl, instruction)
}

func (d *Driver) run(ctx context.Context, ctrl *handoff.Controller, instruction string) (Reply, error) {
	var reply Reply
	for step := 1; step <= d.maxSteps; step++ {
		if role, ok := ctrl.TakeEntry(); ok {
			next, err := d.entryInstruction(ctx, ctrl, role)
			if err != nil {
				return reply, err
			}
			instruction = next
		}

		role := ctrl.Role()
		reply.Role = role
		reply.Steps = step

		msg, err := d.generate(ctx, ctrl, role, instruction)
		if err != nil {
			return reply, err
		}
		// an instruction is spoken to once, not on every tool step after it
		instruction = ""

		if len(msg.ToolCalls) == 0 || role.Kind == handoff.KindTerminated {
			reply.Text = strings.TrimSpace(msg.Content)
			if reply.Text != "" {
				ctrl.History().Append(schema.AssistantMessage(reply.Text, nil))
			}
			return reply, nil
		}

		ctrl.History().Append(msg)
		for _, call := range msg.ToolCalls {
			result := d.execute(ctx, ctrl, role, call)
			reply.ToolCalls = append(reply.ToolCalls, call.Function.Name)
			ctrl.History().Append(schema.ToolMessage(encodeResult(result), call.ID))
		}
	}

	reply.Role = ctrl.Role()
	return reply, fmt.Errorf("%w: no reply after %d steps", ErrStepLimit, d.maxSteps)
}

func (d *Driver) generate(ctx context.Context, ctrl *handoff.Controller, role handoff.Role, instruction string) (*schema.Message, error) {
	system, err := d.prompts.Render(ctx, instructionsFor(role.Kind), roleVars(ctrl.Session(), role))
	if err != nil {
		return nil, err
	}

	chatModel, err := d.models.For(ctx, role.Kind)
	if err != nil {
		return nil, err
	}
	if names := ctrl.Tools(); len(names) > 0 {
		infos, err := d.tools.Infos(names)
		if err != nil {
			return nil, err
		}
		chatModel, err = chatModel.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for %s: %v", contractx.ErrModelInvoke, role.Kind, err)
		}
	}

	history := ctrl.History().Messages()
	input := make([]*schema.Message, 0, len(history)+2)
	input = append(input, schema.SystemMessage(system))
	input = append(input, history...)
	if instruction != "" {
		input = append(input, schema.SystemMessage(instruction))
	}

	msg, err := chatModel.Generate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, role.Kind, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}
	return msg, nil
}

func (d *Driver) execute(ctx context.Context, ctrl *handoff.Controller, role handoff.Role, call schema.ToolCall) contractx.ToolResult {
	name := strings.TrimSpace(call.Function.Name)
	logger := logx.ForSession(ctrl.Session().SessionID)

	args, err := toolx.DecodeArgs(call.Function.Arguments)
	if err != nil {
		logger.Warn().Err(err).Str("tool", name).Msg("undecodable tool arguments")
		return contractx.Failure(name, err)
	}

	started := time.Now()
	result, err := ctrl.Dispatch(ctx, contractx.ToolRequest{ID: call.ID, Tool: name, Args: args})
	if err != nil && !result.Failed() {
		result = contractx.Failure(name, err)
	}

	ev := logger.Debug()
	switch {
	case err != nil:
		ev = logger.Error().Err(err)
	case result.Failed():
		ev = logger.Info()
	}
	ev.Str("tool", name).
		Str("role", string(role.Kind)).
		Str("error_kind", string(result.Kind)).
		Dur("elapsed", time.Since(started)).
		Msg("tool call")
	return result
}

func (d *Driver) entryInstruction(ctx context.Context, ctrl *handoff.Controller, role handoff.Role) (string, error) {
	var name promptx.Name
	switch role.Kind {
	case handoff.KindDiscovery:
		name = promptx.Resume
		if ctrl.History().Len() == 0 {
			name = promptx.Greeting
		}
	case handoff.KindBasicOrder, handoff.KindFullOrder:
		name = promptx.OrderEntry
	default:
		name = promptx.Farewell
	}
	return d.prompts.Render(ctx, name, roleVars(ctrl.Session(), role))
}

func instructionsFor(kind handoff.RoleKind) promptx.Name {
	switch kind {
	case handoff.KindBasicOrder:
		return promptx.BasicOrder
	case handoff.KindFullOrder:
		return promptx.FullOrder
	default:
		return promptx.Discovery
	}
}

func roleVars(session *statex.SessionState, role handoff.Role) map[string]any {
	vars := session.Vars()
	if role.Kind.IsOrder() {
		vars["product_name"] = role.ProductName
		vars["product_type"] = string(role.Product.Type)
		vars["product_details"] = role.Detail
	}
	return vars
}

func encodeResult(result contractx.ToolResult) string {
	data, err := json.Marshal(result)
	if err != nil {
		fallback, _ := json.Marshal(contractx.ToolResult{Tool: result.Tool, Error: err.Error(), Kind: contractx.KindInternal})
		return string(fallback)
	}
	return string(data)
}
