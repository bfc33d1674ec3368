package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/reelforge/reelforge/internal/models"
)

// ---------------------------------------------------------------------------
// Scene Planner
// Turns a raw article into a numbered scene graph (script, image prompt,
// motion effect, duration per scene) using OpenAI structured output.
// ---------------------------------------------------------------------------

const (
	plannerModel    = "gpt-5-mini"
	plannerMinScene = 3
	plannerMaxScene = 8
)

type PlannerService struct {
	client *openai.Client
}

func NewPlannerService(apiKey string) *PlannerService {
	return &PlannerService{
		client: openai.NewClient(apiKey),
	}
}

// plannerResponse is the JSON shape the model is asked for. Scene keys are
// stringified numbers starting at "1"; values match the compile input scheme.
type plannerResponse struct {
	Scenes map[string]models.SceneInput `json:"scenes"`
}

// PlanScenes breaks an article into scenes ready for compilation. The
// returned input still goes through full job validation before any asset
// work starts.
func (s *PlannerService) PlanScenes(ctx context.Context, article, niche string) (*models.JobInput, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: plannerModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildPlannerSystemPrompt(niche),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPlannerUserPrompt(article),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content
	const maxLogLen = 2000

	var plan plannerResponse
	if err := json.Unmarshal([]byte(rawContent), &plan); err != nil {
		log.Printf("[Planner] parse failed: %v", err)
		if len(rawContent) > maxLogLen {
			log.Printf("[Planner] raw response (truncated): %s...", rawContent[:maxLogLen])
		} else {
			log.Printf("[Planner] raw response: %s", rawContent)
		}
		return nil, fmt.Errorf("failed to parse scene plan: %w", err)
	}

	if len(plan.Scenes) == 0 {
		log.Printf("[Planner] plan has no scenes, raw response: %s", rawContent[:minInt(maxLogLen, len(rawContent))])
		return nil, fmt.Errorf("plan has no scenes")
	}

	// Catch obviously broken scenes here so the caller gets a planner error
	// rather than a validation error blaming its own request.
	for key, scene := range plan.Scenes {
		var missing []string
		if scene.Script == "" {
			missing = append(missing, "script")
		}
		if scene.ImagePrompt == "" {
			missing = append(missing, "imagePrompt")
		}
		if scene.Effect == "" {
			missing = append(missing, "effect")
		}
		if scene.Duration <= 0 {
			missing = append(missing, "duration")
		}
		if len(missing) > 0 {
			log.Printf("[Planner] scene %s missing required fields: %v", key, missing)
			return nil, fmt.Errorf("planned scene %s missing required fields: %v", key, missing)
		}
		if _, err := models.ParseEffect(scene.Effect); err != nil {
			return nil, fmt.Errorf("planned scene %s: %w", key, err)
		}
	}

	log.Printf("[Planner] plan generated: %d scenes for niche %q", len(plan.Scenes), niche)

	return &models.JobInput{
		Niche:  niche,
		Scenes: plan.Scenes,
	}, nil
}

func buildPlannerSystemPrompt(niche string) string {
	nicheLine := ""
	if niche != "" {
		nicheLine = fmt.Sprintf("\nThe video belongs to the %q niche. Let that guide vocabulary, mood, and imagery.\n", niche)
	}

	return fmt.Sprintf(`You are an expert short-form video editor turning articles into vertical video scene plans.
%s
Your task: read the article and break it into %d-%d scenes. Each scene pairs a spoken narration line with a still image that a camera move brings to life.

Respond with JSON in exactly this shape:
{
  "scenes": {
    "1": {"script": "...", "imagePrompt": "...", "effect": "zoom_in", "duration": 10},
    "2": {...}
  }
}

Rules for each scene:
- Keys are scene numbers starting at "1", in story order. The video is stitched in ascending numeric order.
- script: 1-3 short conversational sentences of voiceover narration, about 8-12 seconds when read aloud. Written to be LISTENED to, not read. Use contractions and short punchy sentences.
- imagePrompt: a complete visual scene description — subject, setting, lighting, atmosphere, depth. Composed for vertical 9:16 framing. Never reference the article or any text on screen.
- effect: exactly one of "zoom_in", "zoom_out", "pan_left", "pan_right", "pan_up", "pan_down". Pick the move that suits the image: zooms for subjects, pans for wide scenes. Vary effects across consecutive scenes.
- duration: the scene length in seconds (number, typically 8-15). The narration must fit inside it.

Story rules:
- The first scene is the hook — something that makes a viewer stop scrolling.
- Scenes must read as one continuous story, not isolated fragments.
- End with a satisfying payoff, never mid-thought.

Every field is required. A scene with any empty field is invalid.`,
		nicheLine, plannerMinScene, plannerMaxScene)
}

func buildPlannerUserPrompt(article string) string {
	return "Turn this article into a vertical video scene plan:\n\n" + article
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
