package handoff

import (
	"maps"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// History is the dialogue shared by every role of a conversation. It only grows.
type History struct {
	mu   sync.RWMutex
	msgs []*schema.Message
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(msgs ...*schema.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		if m != nil {
			h.msgs = append(h.msgs, m)
		}
	}
}

// Messages returns a snapshot; mutating it, tool calls included, does not affect
// the history.
func (h *History) Messages() []*schema.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*schema.Message, len(h.msgs))
	for i, m := range h.msgs {
		out[i] = copyMessage(m)
	}
	return out
}

func copyMessage(m *schema.Message) *schema.Message {
	cp := *m
	cp.Extra = maps.Clone(m.Extra)
	if m.ToolCalls != nil {
		cp.ToolCalls = make([]schema.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			tc.Extra = maps.Clone(tc.Extra)
			cp.ToolCalls[i] = tc
		}
	}
	return &cp
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}
