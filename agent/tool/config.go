package tool

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

type Param struct {
	Name     string
	Type     schema.DataType
	Desc     string
	Required bool
	Enum     []string
}

// Field is one line of a documented response shape. Nested fields indent.
type Field struct {
	Name   string
	Desc   string
	Fields []Field
}

// Config is the immutable declaration of one tool. Nothing here executes.
type Config struct {
	Name                  string
	Purpose               string
	WhenToUse             string
	Parameters            []Param
	ExecutionNotes        []string
	BehaviorSteps         []string
	ResponseFormat        []Field
	ValidationCheck       []string
	ConfirmationTemplates []string
	ContextualAwareness   []string
	CriticalRules         []string
	Examples              []string
}

// Description compiles the record into the usage policy shown to the model.
// Sections always appear in the same order and empty ones are skipped.
func (c Config) Description() string {
	parts := []string{c.Purpose + "\n", "WHEN TO USE:", c.WhenToUse}

	if len(c.Parameters) > 0 {
		parts = append(parts, "\nREQUIRED PARAMETERS:")
		for _, p := range c.Parameters {
			parts = append(parts, fmt.Sprintf("- %s: %s", p.Name, p.Desc))
		}
	}
	parts = appendBullets(parts, "EXECUTION NOTES:", c.ExecutionNotes)

	if len(c.BehaviorSteps) > 0 {
		parts = append(parts, "\nBEHAVIOR:")
		for i, step := range c.BehaviorSteps {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, step))
		}
	}
	if len(c.ResponseFormat) > 0 {
		parts = append(parts, "\nRESPONSE FORMAT:", formatFields(c.ResponseFormat, 0))
	}

	parts = appendBullets(parts, "VALIDATION CHECK:", c.ValidationCheck)
	parts = appendBullets(parts, "CONFIRMATION TEMPLATES:", c.ConfirmationTemplates)
	parts = appendBullets(parts, "CONTEXTUAL AWARENESS:", c.ContextualAwareness)
	parts = appendBullets(parts, "CRITICAL RULES:", c.CriticalRules)

	if len(c.Examples) > 0 {
		parts = append(parts, "\nEXAMPLES:")
		parts = append(parts, c.Examples...)
	}
	return strings.Join(parts, "\n")
}

// Info is the tool-calling contract handed to the chat model.
func (c Config) Info() *schema.ToolInfo {
	info := &schema.ToolInfo{Name: c.Name, Desc: c.Description()}
	if len(c.Parameters) == 0 {
		return info
	}
	params := make(map[string]*schema.ParameterInfo, len(c.Parameters))
	for _, p := range c.Parameters {
		params[p.Name] = &schema.ParameterInfo{
			Type:     p.Type,
			Desc:     p.Desc,
			Required: p.Required,
			Enum:     p.Enum,
		}
	}
	info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	return info
}

func appendBullets(parts []string, title string, items []string) []string {
	if len(items) == 0 {
		return parts
	}
	parts = append(parts, "\n"+title)
	for _, item := range items {
		parts = append(parts, "- "+item)
	}
	return parts
}

func formatFields(fields []Field, indent int) string {
	prefix := strings.Repeat("  ", indent)
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f.Fields) > 0 {
			lines = append(lines, prefix+f.Name+":", formatFields(f.Fields, indent+1))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s", prefix, f.Name, f.Desc))
	}
	return strings.Join(lines, "\n")
}
