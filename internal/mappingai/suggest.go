// Package mappingai asks a language model to propose a raw → canonical column
// mapping for a bank whose export has not been mapped yet.
package mappingai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/superbank/internal/logger"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("mappingai: empty response from model")

// maxSampleRows bounds how many example rows go into the prompt.
const maxSampleRows = 5

// Request describes the bank export to map.
type Request struct {
	BankName  string
	Header    []string
	Sample    [][]string
	Canonical []string
}

// Suggester proposes column mappings.
// This interface enables mocking and testing of AI suggestion functionality.
type Suggester interface {
	SuggestMapping(ctx context.Context, req Request) (map[string]string, error)
}

// Generator sends a prompt to a model and returns its raw text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls Gemini through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a genai client. Credentials come from the
// environment (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}
	return resp.Text(), nil
}

// GeminiSuggester builds a prompt from the request and validates the answer.
type GeminiSuggester struct {
	gen Generator
}

func NewGeminiSuggester(gen Generator) *GeminiSuggester {
	return &GeminiSuggester{gen: gen}
}

// SuggestMapping returns raw column → canonical column pairs. Pairs naming
// unknown columns are dropped, so the result always validates against the
// request's header.
func (s *GeminiSuggester) SuggestMapping(ctx context.Context, req Request) (map[string]string, error) {
	log := logger.FromContext(ctx)

	rawText, err := s.gen.Generate(ctx, buildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("SuggestMapping: %w", err)
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("SuggestMapping: %w", ErrEmptyResponse)
	}

	var parsed map[string]string
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &parsed); err != nil {
		return nil, fmt.Errorf("SuggestMapping: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	mapping := sanitizeSuggestion(parsed, req.Header, req.Canonical)
	log.Info().
		Str("bank", req.BankName).
		Int("proposed", len(parsed)).
		Int("kept", len(mapping)).
		Msg("mapping suggested")
	return mapping, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You map bank statement CSV columns onto a fixed set of canonical columns.\n\n")
	fmt.Fprintf(&b, "Bank: %s\n\n", req.BankName)

	b.WriteString("Raw columns:\n")
	for _, h := range req.Header {
		b.WriteString("  - " + h + "\n")
	}

	if len(req.Sample) > 0 {
		b.WriteString("\nSample rows (same column order):\n")
		for i, row := range req.Sample {
			if i == maxSampleRows {
				break
			}
			b.WriteString("  " + strings.Join(row, " | ") + "\n")
		}
	}

	b.WriteString("\nCanonical columns:\n")
	for _, c := range req.Canonical {
		b.WriteString("  - " + c + "\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("1. Output a JSON object whose keys are raw column names and values are canonical column names.\n")
	b.WriteString("2. Use names EXACTLY as listed above (case-sensitive).\n")
	b.WriteString("3. Map each canonical column from at most one raw column.\n")
	b.WriteString("4. Leave out raw columns that match nothing.\n\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = strings.TrimSpace(s[idx+1:])
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// sanitizeSuggestion keeps pairs whose raw column is in header and whose
// target is in canonical. When several raw columns claim one target, the one
// earliest in header wins.
func sanitizeSuggestion(proposed map[string]string, header, canonical []string) map[string]string {
	known := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		known[c] = true
	}

	out := make(map[string]string)
	taken := make(map[string]bool)
	for _, raw := range header {
		target, ok := proposed[raw]
		if !ok {
			continue
		}
		target = strings.TrimSpace(target)
		if !known[target] || taken[target] {
			continue
		}
		out[raw] = target
		taken[target] = true
	}
	return out
}
