package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	openrouterx "github.com/tanpawarit/Chative-Voice-Commerce/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	MaxSteps           int           `envconfig:"MAX_STEPS" split_words:"true" default:"8"`

	DiscoveryModel       string  `envconfig:"DISCOVERY_MODEL" split_words:"true"`
	OrderModel           string  `envconfig:"ORDER_MODEL" split_words:"true"`
	DiscoveryTemperature float32 `envconfig:"DISCOVERY_TEMPERATURE" split_words:"true" default:"-1"`
	OrderTemperature     float32 `envconfig:"ORDER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must not be negative", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the chat model settings of a role. Both order roles share the
// order overrides; the terminated role speaks with the discovery model.
func (c Config) OpenRouterFor(kind handoff.RoleKind) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch kind {
	case handoff.KindBasicOrder, handoff.KindFullOrder:
		if v := strings.TrimSpace(c.OrderModel); v != "" {
			modelName = v
		}
		if c.OrderTemperature >= 0 {
			temp = c.OrderTemperature
		}
	default:
		if v := strings.TrimSpace(c.DiscoveryModel); v != "" {
			modelName = v
		}
		if c.DiscoveryTemperature >= 0 {
			temp = c.DiscoveryTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
