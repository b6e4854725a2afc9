package assistant

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	llmx "github.com/tanpawarit/Chative-Voice-Commerce/agent/llm"
)

// ModelSource resolves the chat model that speaks for a role.
type ModelSource interface {
	For(ctx context.Context, kind handoff.RoleKind) (einomodel.ToolCallingChatModel, error)
}

var roleKinds = []handoff.RoleKind{
	handoff.KindDiscovery,
	handoff.KindBasicOrder,
	handoff.KindFullOrder,
	handoff.KindTerminated,
}

type Models struct {
	byKind   map[handoff.RoleKind]einomodel.ToolCallingChatModel
	fallback einomodel.ToolCallingChatModel
}

var _ ModelSource = (*Models)(nil)

// NewModels builds one chat model per distinct role configuration. Roles that resolve
// to the same settings share an instance.
func NewModels(ctx context.Context, cfg llmx.Config) (*Models, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shared := make(map[string]einomodel.ToolCallingChatModel)
	m := &Models{byKind: make(map[handoff.RoleKind]einomodel.ToolCallingChatModel, len(roleKinds))}
	for _, kind := range roleKinds {
		orCfg := cfg.OpenRouterFor(kind)
		key := orCfg.Key()
		if cm, ok := shared[key]; ok {
			m.byKind[kind] = cm
			continue
		}
		cm, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, kind, err)
		}
		shared[key] = cm
		m.byKind[kind] = cm
	}
	return m, nil
}

// StaticModels answers every role with the same model.
func StaticModels(cm einomodel.ToolCallingChatModel) *Models {
	return &Models{byKind: map[handoff.RoleKind]einomodel.ToolCallingChatModel{}, fallback: cm}
}

func (m *Models) For(_ context.Context, kind handoff.RoleKind) (einomodel.ToolCallingChatModel, error) {
	if cm, ok := m.byKind[kind]; ok && cm != nil {
		return cm, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return nil, fmt.Errorf("%w: no model for role %s", contractx.ErrModelInvoke, kind)
}
