package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tradedesk/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements the model collaborator over the Gemini REST API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGeminiClient(apiKey, model string, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *geminiInlineData       `json:"inlineData,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []domain.ToolDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// chatSession carries the accumulated contents for one turn, including
// the function-call round trip.
type chatSession struct {
	client   *GeminiClient
	system   *geminiContent
	tools    []geminiTool
	contents []geminiContent
}

// NewChat binds a system instruction, tool catalog, and prior transcript
// into a session ready for the turn's user message.
func (c *GeminiClient) NewChat(system string, tools []domain.ToolDeclaration, history []domain.Message) domain.Chat {
	session := &chatSession{client: c}
	if system != "" {
		session.system = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if len(tools) > 0 {
		session.tools = []geminiTool{{FunctionDeclarations: tools}}
	}
	for _, msg := range history {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		session.contents = append(session.contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	return session
}

func (s *chatSession) Send(ctx context.Context, parts []domain.Part) (*domain.ModelReply, error) {
	wire := make([]geminiPart, 0, len(parts))
	for _, p := range parts {
		if p.Data != nil {
			wire = append(wire, geminiPart{InlineData: &geminiInlineData{
				MIMEType: p.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		wire = append(wire, geminiPart{Text: p.Text})
	}
	s.contents = append(s.contents, geminiContent{Role: "user", Parts: wire})
	return s.roundTrip(ctx)
}

func (s *chatSession) SendToolResult(ctx context.Context, name string, response map[string]any) (*domain.ModelReply, error) {
	s.contents = append(s.contents, geminiContent{
		Role: "user",
		Parts: []geminiPart{{FunctionResponse: &geminiFunctionResponse{
			Name:     name,
			Response: response,
		}}},
	})
	return s.roundTrip(ctx)
}

func (s *chatSession) roundTrip(ctx context.Context) (*domain.ModelReply, error) {
	resp, err := s.client.generate(ctx, geminiRequest{
		Contents:          s.contents,
		SystemInstruction: s.system,
		Tools:             s.tools,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	candidate := resp.Candidates[0]
	// Echo the model's reply into the session so a tool-result follow-up
	// sees its own function call.
	s.contents = append(s.contents, geminiContent{
		Role:  "model",
		Parts: candidate.Content.Parts,
	})

	reply := &domain.ModelReply{}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.FunctionCall != nil && reply.Call == nil {
			reply.Call = &domain.FunctionCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}
			continue
		}
		text.WriteString(part.Text)
	}
	reply.Text = text.String()
	return reply, nil
}

// Title produces a short conversation title from the opening exchange.
func (c *GeminiClient) Title(ctx context.Context, messages []domain.Message) (string, error) {
	var transcript strings.Builder
	for i, msg := range messages {
		if i == 4 {
			break
		}
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	resp, err := c.generate(ctx, geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{{Text: "Generate a concise 3-5 word title for this conversation. " +
				"Return only the title, no quotes or punctuation.\n\n" + transcript.String()}},
		}},
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: 32},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no title")
	}

	title := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return "", fmt.Errorf("model returned empty title")
	}
	return title, nil
}

func (c *GeminiClient) generate(ctx context.Context, req geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding model request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling model API: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading model response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("model API returned %d with unparseable body", httpResp.StatusCode)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("model API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model API returned %d", httpResp.StatusCode)
	}
	return &parsed, nil
}
