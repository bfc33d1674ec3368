package media

import (
	"strings"
	"testing"
	"time"

	"github.com/reelforge/reelforge/internal/models"
)

const (
	testSrcW = 2160.0
	testSrcH = 3840.0
)

func TestZoomInWindowShrinks(t *testing.T) {
	start := CropWindowAt(models.EffectZoomIn, 0, testSrcW, testSrcH)
	end := CropWindowAt(models.EffectZoomIn, 1, testSrcW, testSrcH)

	if start.W != testSrcW || start.H != testSrcH {
		t.Errorf("zoom_in should start at full bounds, got %+v", start)
	}
	if end.Area() >= start.Area() {
		t.Errorf("zoom_in end area %f should be strictly smaller than start area %f", end.Area(), start.Area())
	}
	if end.W != testSrcW*0.8 {
		t.Errorf("zoom_in should end at 80%% width, got %f", end.W)
	}

	// Monotonically shrinking, centered throughout.
	prev := start
	for frac := 0.1; frac <= 1.0; frac += 0.1 {
		w := CropWindowAt(models.EffectZoomIn, frac, testSrcW, testSrcH)
		if w.Area() >= prev.Area() {
			t.Fatalf("area not strictly decreasing at frac=%.1f", frac)
		}
		centerX := w.X + w.W/2
		if diff := centerX - testSrcW/2; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("zoom_in window not centered at frac=%.1f (centerX=%f)", frac, centerX)
		}
		prev = w
	}
}

func TestZoomOutIsInverseOfZoomIn(t *testing.T) {
	for _, frac := range []float64{0, 0.25, 0.5, 0.75, 1} {
		in := CropWindowAt(models.EffectZoomIn, frac, testSrcW, testSrcH)
		out := CropWindowAt(models.EffectZoomOut, 1-frac, testSrcW, testSrcH)
		if diff := in.W - out.W; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("frac=%.2f: zoom_out(1-t) width %f != zoom_in(t) width %f", frac, out.W, in.W)
		}
	}
}

func TestPanLeftOffsetDecreasesMonotonically(t *testing.T) {
	const steps = 30 // one frame per step at 1s/30fps
	prevX := CropWindowAt(models.EffectPanLeft, 0, testSrcW, testSrcH).X
	maxStep := testSrcW * (1 - panWindowFraction) / steps

	for i := 1; i <= steps; i++ {
		frac := float64(i) / steps
		w := CropWindowAt(models.EffectPanLeft, frac, testSrcW, testSrcH)
		if w.X >= prevX {
			t.Fatalf("pan_left X offset should strictly decrease, got %f -> %f at step %d", prevX, w.X, i)
		}
		if jump := prevX - w.X; jump > maxStep+1e-6 {
			t.Fatalf("pan_left frame jump %f exceeds per-frame step %f", jump, maxStep)
		}
		prevX = w.X
	}

	if prevX != 0 {
		t.Errorf("pan_left should end at the left edge, got X=%f", prevX)
	}
}

func TestPanWindowsKeepFixedSize(t *testing.T) {
	pans := []models.Effect{models.EffectPanLeft, models.EffectPanRight, models.EffectPanUp, models.EffectPanDown}
	for _, effect := range pans {
		for _, frac := range []float64{0, 0.5, 1} {
			w := CropWindowAt(effect, frac, testSrcW, testSrcH)
			if w.W != testSrcW*panWindowFraction || w.H != testSrcH*panWindowFraction {
				t.Errorf("%s at frac=%.1f: window size %fx%f, want fixed 90%%", effect, frac, w.W, w.H)
			}
		}
	}
}

func TestPanDownTraversesFullRange(t *testing.T) {
	start := CropWindowAt(models.EffectPanDown, 0, testSrcW, testSrcH)
	end := CropWindowAt(models.EffectPanDown, 1, testSrcW, testSrcH)

	if start.Y != 0 {
		t.Errorf("pan_down should start at the top edge, got Y=%f", start.Y)
	}
	if want := testSrcH - end.H; end.Y != want {
		t.Errorf("pan_down should end at the bottom edge (Y=%f), got Y=%f", want, end.Y)
	}
}

func TestCropWindowClampsProgress(t *testing.T) {
	under := CropWindowAt(models.EffectZoomIn, -0.5, testSrcW, testSrcH)
	over := CropWindowAt(models.EffectZoomIn, 1.5, testSrcW, testSrcH)

	if under != CropWindowAt(models.EffectZoomIn, 0, testSrcW, testSrcH) {
		t.Error("frac < 0 should clamp to 0")
	}
	if over != CropWindowAt(models.EffectZoomIn, 1, testSrcW, testSrcH) {
		t.Error("frac > 1 should clamp to 1")
	}
}

func TestBuildMotionFilter(t *testing.T) {
	filter := buildMotionFilter(models.EffectZoomIn, 10*time.Second, 1080, 1920, 30)

	if !strings.Contains(filter, "zoompan=") {
		t.Errorf("filter missing zoompan: %s", filter)
	}
	if !strings.Contains(filter, "d=300") {
		t.Errorf("10s at 30fps should produce 300 frames: %s", filter)
	}
	if !strings.Contains(filter, "s=1080x1920") {
		t.Errorf("filter missing output size: %s", filter)
	}
	if !strings.Contains(filter, "scale=") {
		t.Errorf("filter missing upscale guard: %s", filter)
	}
}

func TestBuildMotionFilterPanUsesFixedZoom(t *testing.T) {
	filter := buildMotionFilter(models.EffectPanRight, 5*time.Second, 1080, 1920, 30)

	if !strings.Contains(filter, "z='1.111111'") {
		t.Errorf("pan effects should use a fixed 1/0.9 zoom: %s", filter)
	}
	if !strings.Contains(filter, "(iw-iw/zoom)*on/150") {
		t.Errorf("pan_right should slide X across the full range: %s", filter)
	}
}

func TestBuildMotionFilterMinimumOneFrame(t *testing.T) {
	filter := buildMotionFilter(models.EffectZoomOut, 10*time.Millisecond, 1080, 1920, 30)
	if !strings.Contains(filter, "d=1") {
		t.Errorf("sub-frame durations should clamp to one frame: %s", filter)
	}
}
