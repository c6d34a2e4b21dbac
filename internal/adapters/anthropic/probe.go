package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ncecere/tenant_console/internal/config"
)

const (
	Name = "anthropic"

	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
)

var ErrNotConfigured = errors.New("anthropic: api key required")

// Prober checks the Anthropic API with a model listing request.
type Prober struct {
	client  *http.Client
	baseURL string
	apiKey  string
	version string
	model   string
}

func New(cfg config.AnthropicConfig, httpClient *http.Client) (*Prober, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = defaultVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Prober{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		version: version,
		model:   strings.TrimSpace(cfg.Model),
	}, nil
}

func (p *Prober) Name() string  { return Name }
func (p *Prober) Model() string { return p.model }

func (p *Prober) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/models", p.baseURL), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.version)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("anthropic status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
