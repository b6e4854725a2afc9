package contract

import (
	"fmt"
	"strings"
)

type ProductType string

const (
	ProductBasic        ProductType = "basic"
	ProductVariant      ProductType = "variant"
	ProductCustomizable ProductType = "customizable"
)

func ParseProductType(raw string) (ProductType, error) {
	switch t := ProductType(strings.TrimSpace(raw)); t {
	case ProductBasic, ProductVariant, ProductCustomizable:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProductType, raw)
	}
}

func (t ProductType) Valid() bool {
	_, err := ParseProductType(string(t))
	return err == nil
}

// ProductRef is the product identity. Type is assigned by search and never re-derived.
type ProductRef struct {
	ID   int64       `json:"product_id"`
	Type ProductType `json:"product_type"`
}

func (r ProductRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Candidate is one ranked search hit.
type Candidate struct {
	ID          int64       `json:"id"`
	Document    string      `json:"document"`
	Type        ProductType `json:"product_type"`
	RedirectURL string      `json:"redirect_url"`
	Brand       string      `json:"brand,omitempty"`
	Categories  []string    `json:"categories,omitempty"`
	Score       float64     `json:"similarity_score"`
	Rank        int         `json:"search_rank"`
}

func (c Candidate) Ref() ProductRef {
	return ProductRef{ID: c.ID, Type: c.Type}
}

// ProductDetail is a fetched product rendered for the LLM.
type ProductDetail interface {
	Ref() ProductRef
	Name() string
	Render(currency string) string
}

type Mode string

const (
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeText, ModeVoice:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unsupported mode %q", ErrValidation, raw)
	}
}

type ToolRequest struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string    `json:"tool"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
	Kind   ErrorKind `json:"error_kind,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Error != "" || r.Kind != KindNone
}

func Success(tool string, result any) ToolResult {
	return ToolResult{Tool: tool, Result: result}
}

// Failure converts err into the structured failure signal consumed by the LLM driver.
func Failure(tool string, err error) ToolResult {
	if err == nil {
		return ToolResult{Tool: tool}
	}
	return ToolResult{
		Tool:  tool,
		Error: err.Error(),
		Kind:  KindOf(err),
	}
}

// OrderEvent is emitted after a cart mutation succeeded.
type OrderEvent struct {
	Type        string      `json:"type"`
	SessionID   string      `json:"session_id"`
	Website     string      `json:"website,omitempty"`
	ProductID   int64       `json:"product_id"`
	ProductType ProductType `json:"product_type"`
	ProductName string      `json:"product_name,omitempty"`
	Quantity    int         `json:"quantity,omitempty"`
	Confirm     string      `json:"confirmation,omitempty"`
	OccurredAt  string      `json:"occurred_at"`
}
