package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"chat-pipeline/internal/metrics"
)

const (
	replyTemperature = 0.4
	defaultTimeout   = 8 * time.Second
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements Generator and the router's fallback classifier.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
	log     *slog.Logger
}

func NewOpenAI(apiKey, model string, timeout time.Duration, log *slog.Logger) *OpenAI {
	return newOpenAI(openai.NewClient(apiKey), model, timeout, log)
}

func newOpenAI(client chatClient, model string, timeout time.Duration, log *slog.Logger) *OpenAI {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAI{client: client, model: model, timeout: timeout, log: log}
}

func (o *OpenAI) Generate(ctx context.Context, systemPrompt, message string) Result {
	if strings.TrimSpace(message) == "" {
		return Result{Reason: ReasonEmpty}
	}
	text, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		Temperature: replyTemperature,
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Result{Reason: ReasonTimeout}
	case err != nil:
		o.log.Warn("text generation failed", "model", o.model, "err", err)
		return Result{Reason: ReasonError}
	case text == "":
		return Result{Reason: ReasonEmpty}
	}
	return Result{Text: text, Reason: ReasonOK}
}

const classifyPrompt = `You route customer messages for a meat and cold-cuts distributor.
Classify the message into exactly one of: Catalog, Orders, Support, Qualification, Marketing.
Return ONLY a JSON object: {"intent": "<label>", "confidence": <0-1>, "reason": "<short>"}`

// Classify asks the model for a topic label. The label is not validated here.
func (o *OpenAI) Classify(ctx context.Context, message string) (string, float64, error) {
	raw, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", 0, err
	}
	return parseClassification(raw)
}

func parseClassification(raw string) (string, float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out struct {
		Intent     string   `json:"intent"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return "", 0, fmt.Errorf("textgen: classification parse: %w", err)
	}
	conf := 0.5
	if out.Confidence != nil {
		conf = *out.Confidence
	}
	return out.Intent, conf, nil
}

func (o *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(callCtx, req)
	reason := ReasonOK
	switch {
	case err != nil && callCtx.Err() != nil:
		reason = ReasonTimeout
		err = fmt.Errorf("textgen: %w", context.DeadlineExceeded)
	case err != nil:
		reason = ReasonError
	}
	metrics.TextgenLatency.WithLabelValues(o.model, string(reason)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
