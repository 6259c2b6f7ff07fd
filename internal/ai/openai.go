package ai

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

	"doccontrol/api/internal/logger"
)

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

// OpenAI is the live Gateway backed by the chat completions API in JSON mode.
type OpenAI struct {
	log        *logger.Logger
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client
}

func NewOpenAI(cfg OpenAIConfig, log *logger.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing openai api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &OpenAI{
		log:        log.With("component", "ai.openai"),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		httpClient: cfg.HTTPClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func retryable(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode == http.StatusRequestTimeout || he.StatusCode >= 500
	}
	return false
}

// complete sends one JSON-mode completion and decodes the model output into out.
func (c *OpenAI) complete(ctx context.Context, agent Agent, system, user string, temperature float64, out any) (Meta, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var resp chatResponse
	backoff := 500 * time.Millisecond
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err = c.do(ctx, body, &resp)
		if err == nil || !retryable(err) || attempt == c.maxRetries {
			break
		}
		c.log.Warn("openai retry", "agent", agent, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return Meta{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		return Meta{}, fmt.Errorf("%s completion: %w", agent, err)
	}

	if len(resp.Choices) == 0 {
		return Meta{}, fmt.Errorf("%s completion: no choices", agent)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return Meta{}, fmt.Errorf("%s completion refused: %s", agent, msg.Refusal)
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return Meta{}, fmt.Errorf("%s completion: empty output", agent)
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return Meta{}, fmt.Errorf("%s completion: decode output: %w", agent, err)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Meta{Source: SourceLive, Model: model, Usage: resp.Usage}, nil
}

func (c *OpenAI) do(ctx context.Context, body chatRequest, out *chatResponse) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &httpError{StatusCode: res.StatusCode, Body: truncate(string(raw), 500)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *OpenAI) Analyze(ctx context.Context, in AnalysisInput) (AnalysisResult, error) {
	var out AnalysisResult
	meta, err := c.complete(ctx, AgentAnalysis, analysisPrompt, analysisUserPrompt(in), 0.2, &out)
	if err != nil {
		return AnalysisResult{}, err
	}
	if out.FeedbackItems == nil {
		out.FeedbackItems = []FeedbackItem{}
	}
	out.Meta = meta
	return out, nil
}

func (c *OpenAI) Restructure(ctx context.Context, in RestructureInput) (RestructureResult, error) {
	var out RestructureResult
	meta, err := c.complete(ctx, AgentFormatting, restructurePrompt, restructureUserPrompt(in), 0.2, &out)
	if err != nil {
		return RestructureResult{}, err
	}
	if len(out.Sections) == 0 {
		return RestructureResult{}, errors.New("formatting completion: no sections")
	}
	out.Meta = meta
	return out, nil
}

func (c *OpenAI) ReviewText(ctx context.Context, in ReviewInput) (ReviewResult, error) {
	var out ReviewResult
	meta, err := c.complete(ctx, AgentSpelling, reviewPrompt, reviewUserPrompt(in), 0.1, &out)
	if err != nil {
		return ReviewResult{}, err
	}
	if out.CorrectedText == "" {
		out.CorrectedText = in.Text
	}
	if out.SpellingErrors == nil {
		out.SpellingErrors = []SpellingError{}
	}
	if out.ClaritySuggestions == nil || in.SpellingOnly {
		out.ClaritySuggestions = []ClaritySuggestion{}
	}
	// The flags follow the lists, whatever the model claimed.
	out.HasSpellingErrors = len(out.SpellingErrors) > 0
	out.HasClaritySuggestions = len(out.ClaritySuggestions) > 0
	out.Meta = meta
	return out, nil
}

func (c *OpenAI) GenerateChangelog(ctx context.Context, in ChangelogInput) (ChangelogResult, error) {
	var out ChangelogResult
	meta, err := c.complete(ctx, AgentChangelog, changelogPrompt, changelogUserPrompt(in), 0.2, &out)
	if err != nil {
		return ChangelogResult{}, err
	}
	if out.DiffContent.Sections == nil {
		out.DiffContent.Sections = []ChangeSection{}
	}
	if out.Summary == "" {
		out.Summary = "Changelog generated."
	}
	out.DiffContent.Patch = in.Patch
	out.Meta = meta
	return out, nil
}

func (c *OpenAI) DetectSafety(ctx context.Context, in SafetyInput) (SafetyResult, error) {
	var out SafetyResult
	meta, err := c.complete(ctx, AgentSafety, safetyPrompt, safetyUserPrompt(in), 0.1, &out)
	if err != nil {
		return SafetyResult{}, err
	}
	if out.SafetyTopics == nil {
		out.SafetyTopics = []string{}
	}
	out.Meta = meta
	return out, nil
}

func (c *OpenAI) ExtractReferences(ctx context.Context, in ExtractInput) (ExtractResult, error) {
	var out ExtractResult
	meta, err := c.complete(ctx, AgentCrossrefExtract, extractPrompt, "Extract the references of this procedure:\n\n"+in.Text, 0.1, &out)
	if err != nil {
		return ExtractResult{}, err
	}
	if out.References == nil {
		out.References = []Reference{}
	}
	out.Meta = meta
	return out, nil
}

func (c *OpenAI) ValidateReferences(ctx context.Context, in ValidateInput) (ValidateResult, error) {
	var out ValidateResult
	meta, err := c.complete(ctx, AgentCrossrefValidate, validatePrompt, validateUserPrompt(in), 0.2, &out)
	if err != nil {
		return ValidateResult{}, err
	}
	if out.CrossReferences == nil {
		out.CrossReferences = []CrossReference{}
	}
	out.Meta = meta
	return out, nil
}
