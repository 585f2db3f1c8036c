package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"fx_pricing_agents/internal/logger"
	"fx_pricing_agents/internal/observability"
)

// RunContext identifies one pipeline run and carries the per-run collector.
// A nil Collector disables model telemetry without affecting the invocation.
type RunContext struct {
	AppName   string
	UserID    string
	SessionID string
	Collector *observability.Collector
}

// IDs returns the observability identity for this run.
func (rc RunContext) IDs() observability.IDs {
	return observability.IDs{UserID: rc.UserID, SessionID: rc.SessionID}
}

// Invoker runs one agent against a prompt and returns the raw model output.
type Invoker interface {
	Invoke(ctx context.Context, agentName, prompt string, rc RunContext) (string, error)
}

// ModelConfig configures the chat model backing every agent.
type ModelConfig struct {
	Model       string  `yaml:"name"`
	APIKey      string  `yaml:"-"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ModelInvoker implements Invoker on a single shared chat model. The agent's
// instruction becomes the system message; the prompt becomes the user message.
type ModelInvoker struct {
	model     openai.ChatModel
	modelName string
}

// NewModelInvoker builds the chat model backend. Temperature must be in [0, 1].
func NewModelInvoker(ctx context.Context, config ModelConfig) (*ModelInvoker, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("model api key is required")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature %g out of range [0, 1]", config.Temperature)
	}

	maxTokens := config.MaxTokens
	temperature := float32(config.Temperature)

	model, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.APIKey,
		BaseURL:     config.BaseURL,
		Model:       config.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	return &ModelInvoker{
		model:     *model,
		modelName: config.Model,
	}, nil
}

// Invoke runs the named agent on the prompt and returns the model output.
func (m *ModelInvoker) Invoke(ctx context.Context, agentName, prompt string, rc RunContext) (string, error) {
	spec, err := Lookup(agentName)
	if err != nil {
		return "", err
	}

	messages := []*schema.Message{
		schema.SystemMessage(spec.Instruction),
		schema.UserMessage(prompt),
	}

	logger.Debug().
		Str("agent", agentName).
		Str("user_id", rc.UserID).
		Int("prompt_chars", len(prompt)).
		Msg("invoking agent")

	rc.Collector.ModelBefore(m.modelName, messages, rc.IDs())

	out, err := m.model.Generate(ctx, messages)
	if err != nil {
		rc.Collector.ModelError(err, rc.IDs())
		return "", fmt.Errorf("agent %s generation failed: %w", agentName, err)
	}
	rc.Collector.ModelAfter(out, rc.IDs())

	return out.Content, nil
}
