// Package completion asks an OpenAI chat model for the field pair when the
// rule based parser finds nothing usable in the OCR text.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"wirelens/internal/logger"
	"wirelens/pkg/models"
	"wirelens/pkg/services"
)

var (
	// ErrMissingAPIKey is returned when no OpenAI API key is configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required for AI completion")

	// ErrIncomplete is returned when the model could not name both fields.
	ErrIncomplete = errors.New("model response is missing a field")
)

// Config configures the ChatGPT completer.
type Config struct {
	Model       string  // e.g. gpt-4o-mini
	Temperature float32 // Sampling temperature
	MaxRetries  int     // Attempts per completion
	MaxTokens   int     // Response token limit
}

// DefaultConfig returns the settings used by NewChatGPTCompleterFromEnv.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		Temperature: 0,
		MaxRetries:  3,
		MaxTokens:   200,
	}
}

// ChatGPTCompleter implements services.CredentialCompleter.
type ChatGPTCompleter struct {
	client *openai.Client
	config Config
	log    zerolog.Logger
}

var _ services.CredentialCompleter = (*ChatGPTCompleter)(nil)

// chatResponse is the JSON object the model is asked to return.
type chatResponse struct {
	FirstName       string `json:"first_name"`
	SurnameOrHandle string `json:"surname_or_handle"`
	Confidence      any    `json:"confidence"`
}

// NewChatGPTCompleterFromEnv creates a completer from OPENAI_API_KEY and
// OPENAI_MODEL.
func NewChatGPTCompleterFromEnv() (*ChatGPTCompleter, error) {
	const op = "NewChatGPTCompleterFromEnv"

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAPIKey)
	}

	config := DefaultConfig()
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.Model = model
	}

	return NewChatGPTCompleter(openai.NewClient(apiKey), config), nil
}

// NewChatGPTCompleter creates a completer with an explicit client.
func NewChatGPTCompleter(client *openai.Client, config Config) *ChatGPTCompleter {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	return &ChatGPTCompleter{
		client: client,
		config: config,
		log:    logger.WithComponent("completion"),
	}
}

// Complete asks the model for the field pair contained in ocrText.
func (c *ChatGPTCompleter) Complete(ctx context.Context, ocrText string, partial *models.TextParserResponse) (*services.Completion, error) {
	const op = "Complete"

	prompt := buildPrompt(ocrText, partial)

	c.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("model", c.config.Model).
		Msg("Sending completion request")

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: c.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: c.config.MaxTokens,
		})
		if err != nil {
			lastErr = err
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.config.MaxRetries).
				Msg("Completion request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("no response choices")
			continue
		}

		content := resp.Choices[0].Message.Content
		var parsed chatResponse
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			lastErr = fmt.Errorf("failed to parse model JSON response: %w", err)
			c.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse completion response, retrying")
			continue
		}

		result := models.TextParserResponse{
			FirstName:       strings.TrimSpace(parsed.FirstName),
			SurnameOrHandle: strings.TrimSpace(parsed.SurnameOrHandle),
		}
		if !result.Complete() {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrIncomplete, result)
		}

		completion := &services.Completion{
			Response:   result,
			Confidence: normalizeConfidence(parsed.Confidence),
			Model:      resp.Model,
		}
		if completion.Model == "" {
			completion.Model = c.config.Model
		}

		c.log.Info().
			Float32("confidence", completion.Confidence).
			Int("attempt", attempt).
			Msg("Completed field pair")

		return completion, nil
	}

	return nil, fmt.Errorf("%s: all %d attempts failed, last error: %w", op, c.config.MaxRetries, lastErr)
}

const systemPrompt = `You read OCR text from photos of Wi-Fi cards and conference name badges.
Return a JSON object with exactly these keys:
  "first_name": the network name (SSID) or the person's first name,
  "surname_or_handle": the Wi-Fi password or the person's surname or social handle,
  "confidence": a number between 0 and 1.
Copy values exactly as printed, keeping case. Use an empty string for a value that is not in the text.`

func buildPrompt(ocrText string, partial *models.TextParserResponse) string {
	var b strings.Builder
	b.WriteString("OCR text:\n")
	b.WriteString(ocrText)
	b.WriteString("\n")

	if partial != nil && !partial.IsZero() {
		b.WriteString("\nAlready recognised:\n")
		if partial.FirstName != "" {
			fmt.Fprintf(&b, "first_name: %s\n", partial.FirstName)
		}
		if partial.SurnameOrHandle != "" {
			fmt.Fprintf(&b, "surname_or_handle: %s\n", partial.SurnameOrHandle)
		}
	}

	return b.String()
}

// normalizeConfidence accepts a number or numeric string and clamps it to
// [0, 1]. Anything else maps to 0.5.
func normalizeConfidence(v any) float32 {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(c), "%"), 64)
		if err != nil {
			return 0.5
		}
		f = parsed
		if strings.HasSuffix(strings.TrimSpace(c), "%") {
			f /= 100
		}
	default:
		return 0.5
	}

	if f > 1 && f <= 100 {
		f /= 100
	}
	return float32(max(0, min(f, 1)))
}
