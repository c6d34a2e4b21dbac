package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ncecere/tenant_console/internal/config"
)

const Name = "openai"

var ErrNotConfigured = errors.New("openai: api key required")

// Prober checks that the OpenAI API accepts the configured credentials.
type Prober struct {
	client *openai.Client
	model  string
}

// New creates a prober using the provided API key and optional base URL/organization.
func New(cfg config.OpenAIConfig, extra ...option.RequestOption) (*Prober, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if strings.TrimSpace(cfg.Organization) != "" {
		requestOpts = append(requestOpts, option.WithOrganization(strings.TrimSpace(cfg.Organization)))
	}
	requestOpts = append(requestOpts, extra...)

	client := openai.NewClient(requestOpts...)
	return &Prober{client: &client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (p *Prober) Name() string  { return Name }
func (p *Prober) Model() string { return p.model }

// Probe uses the Models API as a lightweight readiness check.
func (p *Prober) Probe(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	return err
}
