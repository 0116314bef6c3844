package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultChatModelName = "gemini-2.5-flash"

// FailureKind classifies why a completion call failed.
type FailureKind string

const (
	FailureUnavailable FailureKind = "unavailable"
	FailureTimeout     FailureKind = "timeout"
	FailureUnknown     FailureKind = "unknown"
)

// CompletionError is the classified failure returned by a Completer.
// Callers branch on err != nil for fallback behavior; Kind is for logs.
type CompletionError struct {
	Kind FailureKind
	Err  error
}

func (e *CompletionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("completion failed (%s)", e.Kind)
	}
	return fmt.Sprintf("completion failed (%s): %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Completer is the boundary to the external generative model: a prompt
// in, a non-empty trimmed completion or a classified failure out. No
// retries at this layer; fallback behavior belongs to the caller.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiClient implements Completer against the Gemini API. Constructed
// once at startup and injected into the pipelines.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient builds the shared Gemini client. A construction
// failure (including a missing API key) is logged rather than fatal:
// the service keeps serving canned responses and every completion call
// fails as Unavailable.
func NewGeminiClient(apiKey string) *GeminiClient {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		log.Printf("Failed to create GenAI client, completions disabled: %v", err)
		return &GeminiClient{}
	}
	return &GeminiClient{client: client}
}

func (c *GeminiClient) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", &CompletionError{Kind: FailureUnavailable, Err: errors.New("no GenAI client configured")}
	}

	model := c.client.GenerativeModel(defaultChatModelName)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &CompletionError{Kind: classifyFailure(err), Err: err}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &CompletionError{Kind: FailureUnknown, Err: errors.New("empty response from model")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", &CompletionError{Kind: FailureUnknown, Err: errors.New("model returned no text parts")}
	}
	return text, nil
}

func classifyFailure(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return FailureTimeout
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable:
			return FailureUnavailable
		}
	}
	return FailureUnknown
}
