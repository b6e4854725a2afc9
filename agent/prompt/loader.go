package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

type Name string

const (
	Discovery  Name = "discovery"
	FullOrder  Name = "full_order"
	BasicOrder Name = "basic_order"

	Greeting     Name = "entry_greeting"
	OrderEntry   Name = "entry_order"
	Resume       Name = "entry_resume"
	Farewell     Name = "entry_farewell"
	Presence     Name = "idle_presence"
	IdleFarewell Name = "idle_farewell"
)

var (
	//go:embed template/discovery.txt
	discoveryRaw string

	//go:embed template/full_order.txt
	fullOrderRaw string

	//go:embed template/basic_order.txt
	basicOrderRaw string

	//go:embed template/entry_greeting.txt
	greetingRaw string

	//go:embed template/entry_order.txt
	orderEntryRaw string

	//go:embed template/entry_resume.txt
	resumeRaw string

	//go:embed template/entry_farewell.txt
	farewellRaw string

	//go:embed template/idle_presence.txt
	presenceRaw string

	//go:embed template/idle_farewell.txt
	idleFarewellRaw string
)

// Every template variable, with the value used when the caller has none.
var defaultVars = map[string]any{
	"website_name":        "our store",
	"website_description": "-",
	"base_url":            "-",
	"categories":          "-",
	"language":            "en",
	"currency":            "$",
	"mode":                "voice",
	"current_time":        "",
	"product_name":        "",
	"product_type":        "",
	"product_details":     "",
}

// Set holds the compiled instruction templates.
type Set struct {
	templates map[Name]einoprompt.ChatTemplate
	now       func() time.Time
}

var (
	loadOnce sync.Once
	loaded   *Set
)

// Load returns the embedded template set. Templates are compiled once.
func Load() *Set {
	loadOnce.Do(func() {
		loaded = newSet(map[Name]string{
			Discovery:    discoveryRaw,
			FullOrder:    fullOrderRaw,
			BasicOrder:   basicOrderRaw,
			Greeting:     greetingRaw,
			OrderEntry:   orderEntryRaw,
			Resume:       resumeRaw,
			Farewell:     farewellRaw,
			Presence:     presenceRaw,
			IdleFarewell: idleFarewellRaw,
		}, time.Now)
	})
	return loaded
}

func newSet(raw map[Name]string, now func() time.Time) *Set {
	s := &Set{templates: make(map[Name]einoprompt.ChatTemplate, len(raw)), now: now}
	for name, content := range raw {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		s.templates[name] = einoprompt.FromMessages(schema.FString, schema.SystemMessage(content))
	}
	return s
}

// Render formats a template. Variables missing from vars fall back to defaults.
func (s *Set) Render(ctx context.Context, name Name, vars map[string]any) (string, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
	}

	merged := make(map[string]any, len(defaultVars)+len(vars))
	for k, v := range defaultVars {
		merged[k] = v
	}
	merged["current_time"] = s.now().UTC().Format(time.RFC3339)
	for k, v := range vars {
		if str, ok := v.(string); ok && strings.TrimSpace(str) == "" {
			continue
		}
		merged[k] = v
	}

	msgs, err := tpl.Format(ctx, merged)
	if err != nil {
		return "", fmt.Errorf("%w: render %s: %v", contractx.ErrValidation, name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%w: %s rendered nothing", contractx.ErrPromptMissing, name)
	}
	return msgs[0].Content, nil
}
