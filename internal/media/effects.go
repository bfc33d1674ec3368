package media

import (
	"fmt"
	"time"

	"github.com/reelforge/reelforge/internal/models"
)

// ---------------------------------------------------------------------------
// Motion effects — every scene clip is a linear interpolation between a
// start and an end crop window over the source image, resampled at the
// output resolution every frame. The interpolation is linear in crop-window
// coordinates; the window model below and the ffmpeg zoompan expressions
// describe the same motion.
// ---------------------------------------------------------------------------

const (
	// zoom_in ends (and zoom_out starts) on a centered window covering this
	// fraction of each source dimension.
	zoomWindowFraction = 0.8

	// Pan effects keep a fixed window of this fraction per dimension while
	// its corner slides edge to edge.
	panWindowFraction = 0.9
)

// CropWindow is a sub-rectangle of the source image in pixel coordinates.
type CropWindow struct {
	X, Y float64 // top-left corner
	W, H float64
}

// Area returns the window's area in square pixels.
func (c CropWindow) Area() float64 { return c.W * c.H }

// CropWindowAt returns the crop window for an effect at progress frac in
// [0, 1] over a srcW x srcH source. Pan direction names the apparent camera
// motion: pan_left means the window slides from the right edge to the left.
func CropWindowAt(effect models.Effect, frac float64, srcW, srcH float64) CropWindow {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	switch effect {
	case models.EffectZoomIn:
		// Full bounds shrinking to the centered zoom window.
		scale := 1 - (1-zoomWindowFraction)*frac
		return centered(scale, srcW, srcH)

	case models.EffectZoomOut:
		scale := zoomWindowFraction + (1-zoomWindowFraction)*frac
		return centered(scale, srcW, srcH)

	case models.EffectPanLeft:
		w, h := srcW*panWindowFraction, srcH*panWindowFraction
		return CropWindow{X: (srcW - w) * (1 - frac), Y: (srcH - h) / 2, W: w, H: h}

	case models.EffectPanRight:
		w, h := srcW*panWindowFraction, srcH*panWindowFraction
		return CropWindow{X: (srcW - w) * frac, Y: (srcH - h) / 2, W: w, H: h}

	case models.EffectPanUp:
		w, h := srcW*panWindowFraction, srcH*panWindowFraction
		return CropWindow{X: (srcW - w) / 2, Y: (srcH - h) * (1 - frac), W: w, H: h}

	case models.EffectPanDown:
		w, h := srcW*panWindowFraction, srcH*panWindowFraction
		return CropWindow{X: (srcW - w) / 2, Y: (srcH - h) * frac, W: w, H: h}
	}

	// Unreachable for validated jobs; hold the full frame.
	return CropWindow{W: srcW, H: srcH}
}

func centered(scale, srcW, srcH float64) CropWindow {
	w, h := srcW*scale, srcH*scale
	return CropWindow{X: (srcW - w) / 2, Y: (srcH - h) / 2, W: w, H: h}
}

// buildMotionFilter constructs the ffmpeg -vf chain realizing the crop-window
// interpolation: an upscale guard (sources smaller than the target are
// enlarged, aspect preserved, so every frame has a valid window), then
// zoompan with linear z/x/y expressions, output at the target resolution.
func buildMotionFilter(effect models.Effect, duration time.Duration, width, height, fps int) string {
	totalFrames := int(duration.Seconds()*float64(fps) + 0.5)
	if totalFrames < 1 {
		totalFrames = 1
	}

	// zoompan's zoom is the inverse of the window fraction.
	zoomInEnd := 1 / zoomWindowFraction // 1.25
	panZoom := 1 / panWindowFraction    // ~1.111

	var zExpr, xExpr, yExpr string

	switch effect {
	case models.EffectZoomIn:
		// Window shrinks full → 80% centered.
		zExpr = fmt.Sprintf("1.0+%.6f*on/%d", zoomInEnd-1, totalFrames)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case models.EffectZoomOut:
		zExpr = fmt.Sprintf("%.6f-%.6f*on/%d", zoomInEnd, zoomInEnd-1, totalFrames)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case models.EffectPanLeft:
		zExpr = fmt.Sprintf("%.6f", panZoom)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*(1-on/%d)", totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	case models.EffectPanRight:
		zExpr = fmt.Sprintf("%.6f", panZoom)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*on/%d", totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	case models.EffectPanUp:
		zExpr = fmt.Sprintf("%.6f", panZoom)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*(1-on/%d)", totalFrames)

	case models.EffectPanDown:
		zExpr = fmt.Sprintf("%.6f", panZoom)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*on/%d", totalFrames)

	default:
		zExpr = "1.0"
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"
	}

	// Upscale guard: factor = max(1, outW/iw, outH/ih) keeps aspect and
	// leaves oversized sources untouched so they keep their pan headroom.
	upscale := fmt.Sprintf(
		"scale=w='iw*max(1,max(%d/iw,%d/ih))':h='ih*max(1,max(%d/iw,%d/ih))':flags=lanczos,setsar=1",
		width, height, width, height,
	)

	zoompan := fmt.Sprintf(
		"zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		zExpr, xExpr, yExpr,
		totalFrames,
		width, height,
		fps,
	)

	return upscale + "," + zoompan
}
