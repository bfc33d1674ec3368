package models

import (
	"encoding/json"
	"testing"
)

func TestParseEffect(t *testing.T) {
	valid := []string{"zoom_in", "zoom_out", "pan_left", "pan_right", "pan_up", "pan_down"}
	for _, name := range valid {
		e, err := ParseEffect(name)
		if err != nil {
			t.Errorf("ParseEffect(%q) failed: %v", name, err)
		}
		if string(e) != name {
			t.Errorf("ParseEffect(%q) = %q", name, e)
		}
	}
}

func TestParseEffectRejectsUnknown(t *testing.T) {
	for _, name := range []string{"spin", "fade_in", "wobble", "", "ZOOM_IN"} {
		if _, err := ParseEffect(name); err == nil {
			t.Errorf("ParseEffect(%q) should fail", name)
		}
	}
}

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"niche":  "news",
		"scenes": map[string]interface{}{"1": map[string]interface{}{"script": "hello"}},
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["niche"] != "news" {
		t.Errorf("expected niche=news, got %v", result["niche"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"niche": "tech", "scene_count": 2}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["niche"] != "tech" {
		t.Errorf("expected niche=tech, got %v", j["niche"])
	}

	if j["scene_count"].(float64) != 2 {
		t.Errorf("expected scene_count=2, got %v", j["scene_count"])
	}
}

func TestCompilationStatus(t *testing.T) {
	statuses := []CompilationStatus{
		CompilationStatusQueued,
		CompilationStatusResolving,
		CompilationStatusRendering,
		CompilationStatusCompleted,
		CompilationStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestSceneInputRoundTrip(t *testing.T) {
	raw := []byte(`{"script":"Breaking news.","imagePrompt":"a newsroom","effect":"pan_left","duration":15}`)

	var s SceneInput
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("failed to unmarshal scene: %v", err)
	}

	if s.Script != "Breaking news." {
		t.Errorf("unexpected script: %q", s.Script)
	}
	if s.Effect != "pan_left" {
		t.Errorf("unexpected effect: %q", s.Effect)
	}
	if s.Duration != 15 {
		t.Errorf("unexpected duration: %v", s.Duration)
	}
}
