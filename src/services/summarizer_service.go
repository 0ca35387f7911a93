package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxReadmeChars caps how much README text is sent to the model
const maxReadmeChars = 48000

// RepoSummary is the structured output of the summarization call
type RepoSummary struct {
	Summary   string   `json:"summary"`
	CoolFacts []string `json:"cool_facts"`
}

// SummarizerService produces repository summaries through an LLM
// chat-completions call with a JSON-schema constrained response
type SummarizerService struct {
	apiKey     string
	baseURL    string
	prompts    *PromptConfig
	httpClient *http.Client
}

// NewSummarizerService creates a new summarizer service
func NewSummarizerService(baseURL, apiKey string, prompts *PromptConfig) *SummarizerService {
	if prompts == nil {
		prompts = DefaultPromptConfig()
	}
	return &SummarizerService{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		prompts: prompts,
		httpClient: &http.Client{
			Timeout: time.Second * 60,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat json.RawMessage `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// summarySchema constrains the model to the RepoSummary shape
var summarySchema = json.RawMessage(`{
	"type": "json_schema",
	"json_schema": {
		"name": "repo_summary",
		"strict": true,
		"schema": {
			"type": "object",
			"properties": {
				"summary": {
					"type": "string",
					"description": "A concise summary of the GitHub repository based on the README content"
				},
				"cool_facts": {
					"type": "array",
					"items": {"type": "string"},
					"description": "A list of interesting and notable facts extracted from the repository README"
				}
			},
			"required": ["summary", "cool_facts"],
			"additionalProperties": false
		}
	}
}`)

// Summarize sends README content to the model and returns the structured
// summary. README text beyond maxReadmeChars is truncated.
func (s *SummarizerService) Summarize(ctx context.Context, readmeContent string) (*RepoSummary, error) {
	if len(readmeContent) > maxReadmeChars {
		readmeContent = readmeContent[:maxReadmeChars]
	}

	reqBody := chatRequest{
		Model:       s.prompts.Model,
		Temperature: s.prompts.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: s.prompts.System},
			{Role: "user", Content: strings.ReplaceAll(s.prompts.User, "{readme_content}", readmeContent)},
		},
		ResponseFormat: summarySchema,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Service: "llm", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Service: "llm", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Service: "llm",
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, &UpstreamError{Service: "llm", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(completion.Choices) == 0 {
		return nil, &UpstreamError{Service: "llm", Err: fmt.Errorf("completion returned no choices")}
	}

	var summary RepoSummary
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &summary); err != nil {
		return nil, &UpstreamError{Service: "llm", Err: fmt.Errorf("failed to decode structured output: %w", err)}
	}

	return &summary, nil
}
