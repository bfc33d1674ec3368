package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini Image Generation Service
// Uses the Google Gen AI SDK to turn scene prompts into still images that
// the render stage animates with camera moves.
// ---------------------------------------------------------------------------

const (
	defaultGeminiImageModel = "gemini-2.5-flash-image"
	geminiAspectRatio       = "9:16"
)

type GeminiService struct {
	apiKey string
	model  string
}

// NewGeminiService creates an image generation service. model may be empty,
// in which case the default image model is used; per-scene model overrides
// are passed to GenerateImage.
func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		model = defaultGeminiImageModel
	}
	return &GeminiService{
		apiKey: apiKey,
		model:  model,
	}
}

// GenerateImage renders a single still from prompt. negativePrompt, when
// non-empty, is folded into the instruction text (the image API has no
// separate negative field). modelID overrides the service default when set.
// Each call is independent and safe for parallel execution across scenes.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt, negativePrompt, modelID string) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := s.model
	if modelID != "" {
		model = modelID
	}

	fullPrompt := composeImagePrompt(prompt, negativePrompt)

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: geminiAspectRatio,
		},
	}

	log.Printf("[Gemini] Generating image (model=%s, promptLen=%d)", model, len(fullPrompt))

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(fullPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			log.Printf("[Gemini] Image generated (%d bytes, %s)", len(part.InlineData.Data), part.InlineData.MIMEType)
			return part.InlineData.Data, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, fmt.Errorf("gemini returned text instead of image: %s", textParts[0][:minInt(200, len(textParts[0]))])
	}
	return nil, fmt.Errorf("no image data in response (%d parts)", len(resp.Candidates[0].Content.Parts))
}

// composeImagePrompt builds the full instruction text. The scene description
// leads; the vertical-format and avoid clauses trail it so they read as
// constraints, not subject matter.
func composeImagePrompt(prompt, negativePrompt string) string {
	var b strings.Builder

	b.WriteString(prompt)
	b.WriteString("\n\nCompose the image for vertical ")
	b.WriteString(geminiAspectRatio)
	b.WriteString(" framing, highest quality.")

	if negativePrompt != "" {
		b.WriteString("\nAvoid: ")
		b.WriteString(negativePrompt)
	}

	return b.String()
}
