package optimize

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

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

const systemPrompt = `You are an expert in content optimization and layout design.
Given a content block, target audience, and website type, optimize the content block for maximum engagement.
Provide layout suggestions to improve user experience, readability, and overall effectiveness.

Draw on the conventions of sites such as Lifehacker (practical how-to guides), Medium (personal essays),
Longreads (immersive long-form), Reader's Digest (short uplifting reads), BuzzFeed (casual, visual, shareable),
Vox explainers (clarity over headlines) and The Conversation (expert, well-sourced analysis).

Reply with a JSON object with two string fields: "optimizedContent" holding the rewritten block as HTML,
and "explanation" holding an HTML explanation of the changes and the reasoning behind them.`

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Gemini calls the generateContent endpoint and asks for JSON output.
type Gemini struct {
	config GeminiConfig
	client *http.Client
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gemini{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *Gemini) Optimize(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: userPrompt(req)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: &geminiSchema{
				Type: "OBJECT",
				Properties: map[string]geminiSchema{
					"optimizedContent": {Type: "STRING"},
					"explanation":      {Type: "STRING"},
				},
				Required: []string{"optimizedContent", "explanation"},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("gemini marshal: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.config.BaseURL, g.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.config.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gemini http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("gemini read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("gemini unmarshal: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return Result{}, fmt.Errorf("gemini: no candidates returned")
	}

	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Text == "" {
			continue
		}
		var out Result
		if err := json.Unmarshal([]byte(stripFence(part.Text)), &out); err != nil {
			return Result{}, fmt.Errorf("gemini: output is not the expected JSON: %w", err)
		}
		if out.OptimizedContent == "" {
			return Result{}, fmt.Errorf("gemini: empty optimizedContent")
		}
		return out, nil
	}
	return Result{}, fmt.Errorf("gemini: no text in response")
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Content Block: %s\n", req.ContentBlock)
	fmt.Fprintf(&b, "Target Audience: %s\n", req.TargetAudience)
	fmt.Fprintf(&b, "Website Type: %s\n", req.WebsiteType)
	return b.String()
}

// stripFence removes a ```json fence some models wrap JSON output in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// --- Gemini API types ---

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSchema struct {
	Type       string                  `json:"type"`
	Properties map[string]geminiSchema `json:"properties,omitempty"`
	Required   []string                `json:"required,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string        `json:"responseMimeType,omitempty"`
	ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}
