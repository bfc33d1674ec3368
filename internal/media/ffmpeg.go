package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelforge/reelforge/internal/models"
)

// ---------------------------------------------------------------------------
// Engine — ffmpeg/ffprobe bindings for the compilation pipeline.
// Every operation is a single ffmpeg invocation; filter graphs are built by
// pure helpers so they stay testable without the binary installed.
// ---------------------------------------------------------------------------

// Default output geometry — portrait 1080x1920 at 30fps.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
	DefaultFPS    = 30

	// Background bed attenuation relative to narration.
	musicAttenuationDB = -15
)

type Engine struct {
	width  int
	height int
	fps    int
}

func NewEngine(width, height, fps int) *Engine {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Engine{width: width, height: height, fps: fps}
}

// RenderRequest describes one scene clip render: a still image animated with
// a motion effect for exactly Duration, subtitles burned in, no audio track.
type RenderRequest struct {
	ImagePath    string
	OutputPath   string
	SubtitlePath string // empty = no subtitles
	Effect       models.Effect
	Duration     time.Duration
}

// NarrationSegment is one scene's narration in stitch order. Duration is the
// scene's effective duration; the segment is trimmed or silence-padded to it.
type NarrationSegment struct {
	Path     string
	Duration time.Duration
}

// RenderSceneClip renders a silent video clip of exactly req.Duration from a
// still image, applying the motion effect and burning in subtitles.
func (e *Engine) RenderSceneClip(ctx context.Context, req RenderRequest) error {
	vf := buildMotionFilter(req.Effect, req.Duration, e.width, e.height, e.fps)

	if req.SubtitlePath != "" {
		vf += fmt.Sprintf(",ass='%s'", escapeFilterPath(req.SubtitlePath))
	}

	log.Printf("[FFmpeg] Rendering clip (effect=%s, duration=%s)", req.Effect, req.Duration.Round(time.Millisecond))

	args := []string{
		"-i", req.ImagePath,
		"-vf", vf,
		"-t", formatSeconds(req.Duration),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an", // Clips are silent; audio is mixed and attached at the stitch
		"-y",
		req.OutputPath,
	}

	if err := e.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg render clip failed (effect=%s): %w", req.Effect, err)
	}
	return nil
}

// BuildAudioTrack concatenates narration segments end to end, each forced to
// exactly its effective duration, and mixes an optional looping background
// bed underneath at a fixed attenuation so narration stays dominant.
func (e *Engine) BuildAudioTrack(ctx context.Context, segments []NarrationSegment, musicPath, outputPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no narration segments to mix")
	}

	withMusic := musicPath != ""
	if withMusic {
		if _, err := os.Stat(musicPath); err != nil {
			log.Printf("[FFmpeg] Background track %s not readable, mixing without music: %v", musicPath, err)
			withMusic = false
		}
	}

	var args []string
	for _, seg := range segments {
		args = append(args, "-i", seg.Path)
	}
	if withMusic {
		// Loop the bed; amix duration=first cuts it at the narration's end.
		args = append(args, "-stream_loop", "-1", "-i", musicPath)
	}

	filter := buildAudioFilter(segments, withMusic)

	args = append(args,
		"-filter_complex", filter,
		"-map", "[aout]",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	)

	if err := e.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg audio mix failed: %w", err)
	}
	return nil
}

// buildAudioFilter constructs the filter_complex for the audio track.
// Per segment: trim to the effective duration, reset timestamps, then pad
// with silence up to exactly that duration (covers both measured > effective
// and rounding shortfalls); concat joins them in input order.
func buildAudioFilter(segments []NarrationSegment, withMusic bool) string {
	var sb strings.Builder
	for i, seg := range segments {
		d := formatSeconds(seg.Duration)
		fmt.Fprintf(&sb, "[%d:a]atrim=0:%s,asetpts=PTS-STARTPTS,apad=whole_dur=%s[s%d];", i, d, d, i)
	}
	for i := range segments {
		fmt.Fprintf(&sb, "[s%d]", i)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=0:a=1", len(segments))

	if !withMusic {
		sb.WriteString("[aout]")
		return sb.String()
	}

	sb.WriteString("[narr];")
	fmt.Fprintf(&sb, "[%d:a]volume=%ddB[bed];", len(segments), musicAttenuationDB)
	sb.WriteString("[narr][bed]amix=inputs=2:duration=first:dropout_transition=2[aout]")
	return sb.String()
}

// ConcatenateClips combines rendered clips into one video via the concat
// demuxer with stream copy. Input order is the caller's stitch order.
func (e *Engine) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}

	for _, path := range clipPaths {
		fmt.Fprintf(f, "file '%s'\n", path)
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if err := e.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// AttachAudio muxes the mixed audio track onto the concatenated video
// without re-encoding either stream.
func (e *Engine) AttachAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "copy",
		"-shortest",
		"-y",
		outputPath,
	}

	if err := e.run(ctx, "ffmpeg", args); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w", err)
	}
	return nil
}

// AudioDuration returns an audio file's real duration via ffprobe.
func (e *Engine) AudioDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	return e.probeDuration(ctx, audioPath)
}

// VideoDuration returns a video file's duration via ffprobe.
func (e *Engine) VideoDuration(ctx context.Context, videoPath string) (time.Duration, error) {
	return e.probeDuration(ctx, videoPath)
}

func (e *Engine) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(durationSec * float64(time.Second)), nil
}

func (e *Engine) run(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// escapeFilterPath escapes special characters in file paths for ffmpeg
// filter syntax (colons, backslashes, and single quotes are significant).
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// formatSeconds renders a duration as fractional seconds for ffmpeg args.
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
