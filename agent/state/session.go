package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

const (
	DefaultLanguage = "en"
	DefaultCurrency = "$"
)

var (
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Metadata is the opaque bootstrap configuration injected at conversation start.
type Metadata struct {
	WebsiteName        string   `json:"website_name"`
	WebsiteDescription string   `json:"description_website"`
	Host               string   `json:"host"`
	Language           string   `json:"language"`
	Currency           string   `json:"currency"`
	DatabaseName       string   `json:"database_name"`
	Mode               string   `json:"mode"`
	Categories         []string `json:"categories,omitempty"`
}

// PendingProduct is the product the user was last navigated to.
type PendingProduct struct {
	Ref         contractx.ProductRef `json:"ref"`
	RedirectURL string               `json:"redirect_url"`
	SetAt       time.Time            `json:"set_at"`
}

// SessionState is owned by one conversation and never persisted.
type SessionState struct {
	SessionID          string         `json:"session_id"`
	WebsiteName        string         `json:"website_name"`
	WebsiteDescription string         `json:"website_description"`
	BaseURL            string         `json:"base_url"`
	DatabaseName       string         `json:"database_name"`
	Categories         []string       `json:"categories,omitempty"`
	Language           string         `json:"language"`
	Currency           string         `json:"currency"`
	Mode               contractx.Mode `json:"mode"`

	pending *PendingProduct

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState validates bootstrap metadata. Mode must be text or voice.
func NewSessionState(sessionID string, meta Metadata, now time.Time) (*SessionState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	rawMode := meta.Mode
	if strings.TrimSpace(rawMode) == "" {
		rawMode = string(contractx.ModeVoice)
	}
	mode, err := contractx.ParseMode(rawMode)
	if err != nil {
		return nil, err
	}

	language := strings.TrimSpace(meta.Language)
	if language == "" {
		language = DefaultLanguage
	}
	currency := strings.TrimSpace(meta.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	baseURL := strings.TrimSpace(meta.Host)
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	return &SessionState{
		SessionID:          sessionID,
		WebsiteName:        strings.TrimSpace(meta.WebsiteName),
		WebsiteDescription: strings.TrimSpace(meta.WebsiteDescription),
		BaseURL:            strings.TrimRight(baseURL, "/"),
		DatabaseName:       strings.TrimSpace(meta.DatabaseName),
		Categories:         append([]string(nil), meta.Categories...),
		Language:           language,
		Currency:           currency,
		Mode:               mode,
		StartedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Pending returns a copy of the pending product, if any.
func (s *SessionState) Pending() (PendingProduct, bool) {
	if s == nil || s.pending == nil {
		return PendingProduct{}, false
	}
	return *s.pending, true
}

// SetPending records a product navigation. It replaces any previous pending product.
func (s *SessionState) SetPending(ref contractx.ProductRef, redirectURL string, now time.Time) error {
	if s == nil {
		return ErrNilSessionState
	}
	if !ref.Type.Valid() {
		return fmt.Errorf("%w: %q", contractx.ErrInvalidProductType, ref.Type)
	}
	if ref.ID <= 0 {
		return fmt.Errorf("%w: product id must be positive", contractx.ErrValidation)
	}
	s.pending = &PendingProduct{
		Ref:         ref,
		RedirectURL: strings.TrimSpace(redirectURL),
		SetAt:       now.UTC(),
	}
	s.Touch(now)
	return nil
}

// TakePending returns and clears the pending product. Called when an order task starts.
func (s *SessionState) TakePending(now time.Time) (PendingProduct, error) {
	if s == nil {
		return PendingProduct{}, ErrNilSessionState
	}
	if s.pending == nil {
		return PendingProduct{}, contractx.ErrMissingPendingProduct
	}
	p := *s.pending
	s.pending = nil
	s.Touch(now)
	return p, nil
}

func (s *SessionState) ClearPending(now time.Time) {
	if s == nil || s.pending == nil {
		return
	}
	s.pending = nil
	s.Touch(now)
}

// ProductURL builds the storefront url for a product permalink.
func (s *SessionState) ProductURL(permalink string) string {
	permalink = strings.TrimLeft(strings.TrimSpace(permalink), "/")
	if s == nil || s.BaseURL == "" {
		return "/product/" + permalink
	}
	return s.BaseURL + "/product/" + permalink
}

// Vars exposes session fields to instruction templates.
func (s *SessionState) Vars() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	categories := "-"
	if len(s.Categories) > 0 {
		categories = strings.Join(s.Categories, ", ")
	}
	return map[string]any{
		"website_name":        s.WebsiteName,
		"website_description": s.WebsiteDescription,
		"base_url":            s.BaseURL,
		"language":            s.Language,
		"currency":            s.Currency,
		"mode":                string(s.Mode),
		"categories":          categories,
	}
}
