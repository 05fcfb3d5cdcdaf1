package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/transcodarr/transcodarr/internal/models"
)

// MediaInfo is the probed metadata planning needs.
type MediaInfo struct {
	// DurationSeconds is the container duration truncated to whole seconds.
	DurationSeconds int
	// Framerate is the average framerate of the first video stream, in
	// frames per second. Zero for audio-only sources.
	Framerate float64
}

// probeResult is the subset of ffprobe's JSON output we consume.
type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"`
	RFrameRate   string `json:"r_frame_rate,omitempty"`
}

// defaultProbeTimeout bounds a single ffprobe invocation.
const defaultProbeTimeout = 30 * time.Second

// Prober inspects media files using ffprobe.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new Prober. An empty path auto-detects ffprobe on PATH.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		if found, err := exec.LookPath("ffprobe"); err == nil {
			ffprobePath = found
		} else {
			ffprobePath = "ffprobe"
		}
	}
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     defaultProbeTimeout,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Inspect probes a file for its duration and framerate. Failures of the
// probe process or of metadata extraction surface as models.ErrProbeFailed.
func (p *Prober) Inspect(ctx context.Context, path string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: probe timeout after %v", models.ErrProbeFailed, p.timeout)
		}
		return nil, fmt.Errorf("%w: ffprobe: %v", models.ErrProbeFailed, err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing ffprobe output: %v", models.ErrProbeFailed, err)
	}

	return result.mediaInfo()
}

// mediaInfo extracts duration and framerate from a probe result.
func (r *probeResult) mediaInfo() (*MediaInfo, error) {
	if r.Format.Duration == "" {
		return nil, fmt.Errorf("%w: container reports no duration", models.ErrProbeFailed)
	}
	seconds, err := strconv.ParseFloat(r.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("%w: invalid duration %q", models.ErrProbeFailed, r.Format.Duration)
	}

	info := &MediaInfo{DurationSeconds: int(seconds)}

	for _, stream := range r.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if fr := parseFramerate(stream.AvgFrameRate); fr > 0 {
			info.Framerate = fr
		} else {
			info.Framerate = parseFramerate(stream.RFrameRate)
		}
		break
	}

	return info, nil
}

// parseFramerate parses ffprobe's fractional framerate notation ("25/1",
// "30000/1001"). Returns 0 when the value is missing or malformed.
func parseFramerate(fr string) float64 {
	if fr == "" || fr == "0/0" {
		return 0
	}

	num, den, ok := strings.Cut(fr, "/")
	if !ok {
		if v, err := strconv.ParseFloat(fr, 64); err == nil {
			return v
		}
		return 0
	}

	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
