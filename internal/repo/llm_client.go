package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LLMConfig configures an OpenAI-compatible chat completions endpoint (OpenAI, OpenRouter, vLLM...).
type LLMConfig struct {
	BaseURL      string
	EndpointPath string
	APIKey       string
	Model        string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

// LLMClient issues single-shot completions that must return JSON conforming to a schema.
type LLMClient struct {
	url        string
	apiKey     string
	model      string
	temp       float64
	maxTokens  int
	headers    map[string]string
	httpClient *http.Client
}

// ErrLLMResponseInvalid reports an upstream reply without usable content.
var ErrLLMResponseInvalid = errors.New("llm response invalid")

// NewLLMClient constructs a completion client. The API key is required.
func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm client: missing api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-oss-120b:exacto"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	// The per-call deadline comes from the caller's context; this only bounds stuck connections.
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	fullURL := cfg.EndpointPath
	if !strings.HasPrefix(fullURL, "http://") && !strings.HasPrefix(fullURL, "https://") {
		fullURL = strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.EndpointPath, "/")
	}

	return &LLMClient{
		url:        fullURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		maxTokens:  cfg.MaxTokens,
		headers:    cfg.ExtraHeaders,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the raw message content.
// When schema is non-empty the request asks for strict json_schema output.
func (c *LLMClient) Complete(ctx context.Context, prompt string, schemaName string, schema json.RawMessage) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm client not initialised")
	}
	body := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
	}
	if len(schema) > 0 {
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: schemaName, Schema: schema, Strict: true},
		}
	}
	payload, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		if k != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("llm upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", ErrLLMResponseInvalid)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrLLMResponseInvalid
	}
	return out.Choices[0].Message.Content, nil
}
