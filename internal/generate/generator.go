// Package generate proposes a new portrait field set from the current
// version plus the open feedback that motivated a revision.
//
// The proposal is a draft: it is returned to the operator for review and is
// only persisted later through the publish coordinator. Only the shape of
// the generated fields is validated here — content quality is the
// reviewer's job.
package generate

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"hirebot/portrait-service/internal/feedback"
	"hirebot/portrait-service/internal/portrait"
)

// Generator produces a candidate field set conforming to the portrait schema.
type Generator interface {
	Draft(ctx context.Context, baseID string, current portrait.Fields, open []feedback.Item) (*portrait.Fields, error)
}

// Gemini is the Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator using the given API key and model
// name (e.g. "gemini-2.5-pro").
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Draft asks the model for a revised field set and validates its shape
// against the closed portrait schema before returning it.
func (g *Gemini) Draft(ctx context.Context, baseID string, current portrait.Fields, open []feedback.Item) (*portrait.Fields, error) {
	prompt, err := buildPrompt(baseID, current, open)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	fields, err := portrait.DecodeFields([]byte(CleanJSON(resp.Text())))
	if err != nil {
		return nil, fmt.Errorf("generated portrait rejected: %w", err)
	}
	return &fields, nil
}
