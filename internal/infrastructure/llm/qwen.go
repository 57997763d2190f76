package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"InfoDigest/internal/config"
	"InfoDigest/internal/domain"
)

const maxQwenResponseBytes = 4 << 20

// QwenProvider calls DashScope's OpenAI-compatible chat endpoint.
type QwenProvider struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Provider = (*QwenProvider)(nil)

// NewQwenProvider builds a client from configuration.
func NewQwenProvider(cfg config.ProviderConfig, httpClient *http.Client) *QwenProvider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &QwenProvider{
		endpoint:   chatEndpoint(cfg.BaseURL),
		model:      cfg.Model,
		apiKey:     strings.Trim(strings.TrimSpace(cfg.APIKey), `"'`),
		httpClient: httpClient,
	}
}

// chatEndpoint makes sure the base ends in /v1 before appending the route.
func chatEndpoint(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/chat/completions"
}

// Name identifies the provider in logs.
func (c *QwenProvider) Name() string { return config.ProviderQwen }

// Complete posts the prompt as a user message.
func (c *QwenProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" || c.model == "" {
		return "", domain.NewSummarizationError(domain.ReasonAuthentication, errors.New("qwen client misconfigured"))
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal qwen payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(fmt.Errorf("qwen request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxQwenResponseBytes))
	if err != nil {
		return "", classifyTransport(fmt.Errorf("read qwen response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = gjson.GetBytes(raw, "message").String()
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
			if len(msg) > 512 {
				msg = msg[:512]
			}
		}
		return "", classifyStatus(resp.StatusCode, fmt.Errorf("qwen error %s: %s", resp.Status, msg))
	}

	if !gjson.ValidBytes(raw) {
		return "", domain.NewSummarizationError(domain.ReasonMalformedResponse, errors.New("qwen returned invalid json"))
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", domain.NewSummarizationError(domain.ReasonMalformedResponse, errors.New("qwen returned no choices"))
	}
	return content.String(), nil
}
