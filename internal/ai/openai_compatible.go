package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docuchat/internal/pkg/retryutil"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	MaxReplyTokens int
	MaxRetries     int
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
}

func NewOpenAICompatibleClient(timeout time.Duration) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAICompatibleClient) buildRequest(ctx context.Context, cfg ChatConfig, messages []ChatMessage, stream bool) (*http.Request, error) {
	reqBody := map[string]interface{}{
		"model":       cfg.Model,
		"messages":    messages,
		"stream":      stream,
		"temperature": cfg.Temperature,
	}
	if cfg.MaxReplyTokens > 0 {
		reqBody["max_tokens"] = cfg.MaxReplyTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	return req, nil
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	var content string
	err := retryutil.Do(ctx, cfg.MaxRetries+1, 500*time.Millisecond, func(ctx context.Context) error {
		req, err := c.buildRequest(ctx, cfg, messages, false)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("llm request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read llm response failed: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
		}

		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("parse llm json failed: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("empty llm choices")
		}
		content = parsed.Choices[0].Message.Content
		return nil
	})
	return content, err
}

// StreamComplete issues a streaming completion and forwards each content
// delta to onChunk as it arrives. The connection attempt is retried with
// backoff, but once the first chunk has been delivered a failure is
// surfaced as-is: the caller has already seen partial output.
func (c *OpenAICompatibleClient) StreamComplete(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (string, error) {
	var full strings.Builder
	err := retryutil.Do(ctx, cfg.MaxRetries+1, 500*time.Millisecond, func(ctx context.Context) error {
		streamErr := c.streamOnce(ctx, cfg, messages, &full, onChunk)
		if streamErr != nil && full.Len() > 0 {
			return retryutil.Permanent(streamErr)
		}
		return streamErr
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

func (c *OpenAICompatibleClient) streamOnce(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	full *strings.Builder,
	onChunk func(chunk string) error,
) error {
	req, err := c.buildRequest(ctx, cfg, messages, true)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llm stream status %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		text := chunk.Choices[0].Delta.Content
		if text == "" {
			continue
		}

		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan llm stream failed: %w", err)
	}
	return nil
}
