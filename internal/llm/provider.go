package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"cratedigger/internal/core"
)

const (
	maxTokensConfirm   = 300
	maxTokensTranslate = 200
	defaultTemperature = 0.1
)

var ErrNotConfigured = errors.New("LLM provider not configured")

// Pacer runs one remote call under the LLM rate governor.
type Pacer interface {
	Do(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error
}

// Provider implements core.SemanticConfirmer and core.Translator on top of one LLM backend.
type Provider struct {
	config  *core.LLMConfig
	logger  *zap.Logger
	client  LLMClient
	pacer   Pacer
	timeout time.Duration
}

// LLMClient sends one system+user exchange and returns the raw text answer.
// A 429 is returned wrapping core.ErrRateLimited.
type LLMClient interface {
	Complete(ctx context.Context, system, user string, maxTokens int64) (string, error)
}

type confirmResponse struct {
	Same       bool    `json:"same"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

func NewProvider(config *core.LLMConfig, timeout time.Duration, pacer Pacer, logger *zap.Logger) (*Provider, error) {
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var client LLMClient
	var err error

	switch config.Provider {
	case "openai":
		client, err = NewOpenAIClient(config, timeout, logger)
	case "anthropic":
		client, err = NewAnthropicClient(config, timeout, logger)
	case "ollama":
		client, err = NewOllamaClient(config, timeout, logger)
	case "none", "":
		client = &NoOpClient{}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", config.Provider, err)
	}

	return &Provider{
		config:  config,
		logger:  logger,
		client:  client,
		pacer:   pacer,
		timeout: timeout,
	}, nil
}

// ConfirmMatch asks the model whether two descriptions name the same music item.
func (p *Provider) ConfirmMatch(ctx context.Context, descriptionA, descriptionB string) (bool, error) {
	user := fmt.Sprintf("A: %s\nB: %s", descriptionA, descriptionB)

	content, err := p.complete(ctx, confirmPrompt, user, maxTokensConfirm)
	if err != nil {
		return false, err
	}

	var response confirmResponse
	if err := decodeJSON(content, &response); err != nil {
		p.logger.Error("Failed to parse confirmation response", zap.Error(err), zap.String("content", content))
		return false, fmt.Errorf("failed to parse confirmation response: %w", err)
	}

	p.logger.Debug("Semantic confirmation completed",
		zap.String("a", descriptionA),
		zap.String("b", descriptionB),
		zap.Bool("same", response.Same),
		zap.Float64("confidence", response.Confidence),
		zap.String("reasoning", response.Reasoning))

	return response.Same, nil
}

// Translate renders a title or artist name in English, transliterating names.
func (p *Provider) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text provided")
	}

	content, err := p.complete(ctx, translatePrompt, text, maxTokensTranslate)
	if err != nil {
		return "", err
	}

	var response translateResponse
	if err := decodeJSON(content, &response); err != nil {
		p.logger.Error("Failed to parse translation response", zap.Error(err), zap.String("content", content))
		return "", fmt.Errorf("failed to parse translation response: %w", err)
	}
	if response.Translation == "" {
		return "", fmt.Errorf("empty translation for %q", text)
	}

	p.logger.Debug("Translated", zap.String("text", text), zap.String("translation", response.Translation))
	return response.Translation, nil
}

func (p *Provider) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	var content string
	call := func(ctx context.Context) (core.RateInfo, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		var err error
		content, err = p.client.Complete(callCtx, system, user, maxTokens)
		if errors.Is(err, core.ErrRateLimited) {
			return core.RateInfo{Limited: true}, nil
		}
		return core.RateInfo{}, err
	}

	if p.pacer == nil {
		info, err := call(ctx)
		if err == nil && info.Limited {
			return "", core.ErrRateLimited
		}
		return content, err
	}
	if err := p.pacer.Do(ctx, call); err != nil {
		return "", err
	}
	return content, nil
}

// decodeJSON tolerates models that wrap their JSON answer in a markdown fence.
func decodeJSON(content string, out any) error {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return json.Unmarshal([]byte(strings.TrimSpace(content)), out)
}

type NoOpClient struct{}

func (n *NoOpClient) Complete(context.Context, string, string, int64) (string, error) {
	return "", ErrNotConfigured
}
