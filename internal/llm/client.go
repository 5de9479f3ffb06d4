// Package llm adapts an OpenAI-compatible chat completion endpoint to the
// engine's rewriter interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cognicore/kwtune/pkg/kwtune/rewrite"
)

const systemPrompt = "당신은 한국어 블로그 원고를 다듬는 편집자입니다. " +
	"주어진 제약을 반드시 지키면서 자연스러운 문장으로 고쳐 쓰세요. " +
	"설명, 따옴표, 머리말 없이 고친 문장만 답하세요."

// Config describes the endpoint.
type Config struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// New creates a client. Model is required.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Rewrite implements rewrite.Rewriter. Rate limits, server errors and
// transport failures come back as transient errors; other API rejections
// are fatal.
func (c *Client) Rewrite(ctx context.Context, text, constraint string) (string, error) {
	user := fmt.Sprintf("제약: %s\n\n원문: %s", constraint, text)
	out, err := c.Chat(ctx, systemPrompt, user)
	if err != nil {
		return "", err
	}
	return cleanCandidate(out), nil
}

// Chat sends one system and one user message and returns the first choice.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", rewrite.NewTransientError(rewrite.ErrEmptyCandidate)
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var status int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// No HTTP status: the request never got an answer.
		return rewrite.NewTransientError(fmt.Errorf("llm: %w", err))
	}
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return rewrite.NewTransientError(fmt.Errorf("llm: status %d: %w", status, err))
	}
	return rewrite.NewFatalError(fmt.Errorf("llm: status %d: %w", status, err))
}

// cleanCandidate strips code fences and wrapping quotes and folds the reply
// onto one line.
func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.Join(strings.Fields(s), " ")
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}, {"「", "」"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}
