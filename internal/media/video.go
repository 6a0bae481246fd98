package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo describes the primary video stream as reported by ffprobe.
type VideoInfo struct {
	Duration float64
	Width    int
	Height   int
}

// framePositions are the relative points sampled from each video.
var framePositions = []float64{1.0 / 6, 1.0 / 2, 5.0 / 6}

type ffprobeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo runs ffprobe to read duration and dimensions of the primary
// video stream. Requires ffprobe on PATH.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := VideoInfo{}
	if d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	if len(probe.Streams) > 0 {
		info.Width = probe.Streams[0].Width
		info.Height = probe.Streams[0].Height
	}
	if info.Duration <= 0 {
		return info, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return info, nil
}

// SampleFrames extracts JPEG frames at fixed relative positions across the
// video. Frames that fail to extract are skipped; an empty result is an
// error since the caller has nothing to embed.
func SampleFrames(ctx context.Context, path string, duration float64) ([][]byte, error) {
	var frames [][]byte
	for _, pos := range framePositions {
		frame, err := extractFrame(ctx, path, duration*pos)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", path)
	}
	return frames, nil
}

func extractFrame(ctx context.Context, path string, offset float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(offset, 'f', 2, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"-",
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame data")
	}
	return stdout.Bytes(), nil
}
