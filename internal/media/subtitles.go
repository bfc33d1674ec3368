package media

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Subtitle compositor
//
// The scene script is segmented into display chunks bounded by a maximum
// line width (never splitting a word); each chunk is shown for a span
// proportional to its share of the script's characters, and the spans sum
// exactly to the scene's effective duration. Output is an ASS file burned
// into the clip by the renderer.
//
// Visual style: bold white text with a dark outline on a translucent box,
// anchored at the lower third of the portrait frame.
// ---------------------------------------------------------------------------

const (
	// Maximum characters per caption chunk (one display line at the chosen
	// font size on a 1080-wide canvas).
	maxChunkChars = 28

	subtitleFontName = "Noto Sans"
	subtitleFontSize = 62

	// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	assColorWhite     = "&H00FFFFFF"
	assColorBlack     = "&H00000000"
	assColorSemiBlack = "&H80000000"

	outlineWidth = 4

	// Lower-third anchor: bottom-center alignment with this margin keeps the
	// caption block clear of the frame's focal center.
	subtitleMarginV = 560
)

// WriteSubtitles renders a script as time-chunked ASS captions spanning
// exactly the given duration and writes them to outputPath.
func WriteSubtitles(script string, duration time.Duration, outputPath string) error {
	chunks := ChunkScript(script, maxChunkChars)
	if len(chunks) == 0 {
		return fmt.Errorf("no caption text in script")
	}

	spans := AllocateSpans(chunks, duration)

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", DefaultWidth)
	fmt.Fprintf(&sb, "PlayResY: %d\n", DefaultHeight)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,1,0,1,%d,0,2,40,40,%d,1\n",
		subtitleFontName, subtitleFontSize,
		assColorWhite,
		assColorWhite,
		assColorBlack,
		assColorSemiBlack,
		outlineWidth,
		subtitleMarginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	cursor := time.Duration(0)
	for i, chunk := range chunks {
		end := cursor + spans[i]
		fmt.Fprintf(&sb,
			"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(cursor),
			formatASSTime(end),
			chunk,
		)
		cursor = end
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	return nil
}

// ChunkScript splits text into display chunks of at most maxChars characters
// without ever splitting a word. A single word longer than maxChars becomes
// its own chunk.
func ChunkScript(text string, maxChars int) []string {
	words := strings.Fields(text)

	var chunks []string
	var current []string
	currentLen := 0

	for _, word := range words {
		wordLen := utf8.RuneCountInString(word)
		// +1 for the joining space
		if len(current) > 0 && currentLen+1+wordLen > maxChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			currentLen = 0
		}
		if len(current) > 0 {
			currentLen++
		}
		current = append(current, word)
		currentLen += wordLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// AllocateSpans distributes total across chunks proportionally to their
// character counts. Spans always sum exactly to total: the last chunk
// absorbs the rounding remainder.
func AllocateSpans(chunks []string, total time.Duration) []time.Duration {
	spans := make([]time.Duration, len(chunks))
	if len(chunks) == 0 {
		return spans
	}

	totalChars := 0
	for _, c := range chunks {
		totalChars += utf8.RuneCountInString(c)
	}
	if totalChars == 0 {
		spans[len(spans)-1] = total
		return spans
	}

	allocated := time.Duration(0)
	for i, c := range chunks[:len(chunks)-1] {
		span := time.Duration(int64(total) * int64(utf8.RuneCountInString(c)) / int64(totalChars))
		spans[i] = span
		allocated += span
	}
	spans[len(spans)-1] = total - allocated
	return spans
}

// formatASSTime converts a duration to ASS timestamp format: H:MM:SS.CC
func formatASSTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalCenti := int64(d / (10 * time.Millisecond))
	centi := totalCenti % 100
	totalSec := totalCenti / 100
	hours := totalSec / 3600
	minutes := (totalSec % 3600) / 60
	secs := totalSec % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centi)
}
