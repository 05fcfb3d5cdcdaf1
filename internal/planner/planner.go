// Package planner decomposes validated requests into unit jobs and their
// part manifests. Planning is pure: given the same request and probed
// metadata it always produces the same jobs with byte-identical argument
// strings, so replanning a request yields identical output paths.
package planner

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/transcodarr/transcodarr/internal/config"
	"github.com/transcodarr/transcodarr/internal/ffmpeg"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/pkg/timecode"
)

// Planner turns requests into jobs and parts.
type Planner struct {
	chunkSeconds int
	enableCRF    bool
}

// New creates a Planner from encode configuration.
func New(cfg config.EncodeConfig) *Planner {
	return &Planner{
		chunkSeconds: cfg.ChunkSeconds,
		enableCRF:    cfg.EnableCRF,
	}
}

// Plan decomposes a transcode request into unit jobs and parts.
//
// Audio jobs are emitted first: they cannot be chunked, so per target they
// have the longest single-worker runtime. Handing them out before the
// chunked video work maximises the chance they finish in parallel with it.
func (p *Planner) Plan(req *models.Request, targets []models.TargetRendition, media ffmpeg.MediaInfo) ([]*models.Job, []*models.Part) {
	destFolder := filepath.Dir(req.Destination)
	prefix := outputPrefix(req.Destination)
	destExt := filepath.Ext(req.Destination)

	jobs := make([]*models.Job, 0, len(targets)+chunkCount(media.DurationSeconds, p.chunkSeconds))
	parts := make([]*models.Part, 0)

	// Audio pass: one full-length encode per target.
	audioSource := req.VideoSource
	if req.AudioSource != "" {
		audioSource = req.AudioSource
	}
	for i, target := range targets {
		output := filepath.Join(destFolder, fmt.Sprintf("%s_%d_audio.mp4", prefix, i))

		jobs = append(jobs, &models.Job{
			Arguments: fmt.Sprintf(`-y -i "%s" -c:a aac -b:a %dk -vn "%s"`,
				audioSource, target.AudioBitrate, output),
			Needed: req.Needed,
			Kind:   models.JobKindAudio,
			Source: audioSource,
			// The full source duration, not a chunk length; workers use it
			// for progress estimation.
			ChunkDuration: media.DurationSeconds,
			Active:        true,
		})
		parts = append(parts, &models.Part{
			TargetIndex: i,
			Number:      0,
			Filename:    output,
		})
	}

	// Video pass: one job per chunk, each emitting every target rendition
	// in a single tool invocation.
	if req.VideoSource != "" {
		for k := 0; k*p.chunkSeconds < media.DurationSeconds; k++ {
			start := k * p.chunkSeconds
			if start > media.DurationSeconds {
				start = media.DurationSeconds
			}

			var sb strings.Builder
			// The last chunk's -t is deliberately not shortened; the
			// encoder clips at end of stream, which keeps chunk byte
			// ranges identical across reruns.
			fmt.Fprintf(&sb, `-y -ss %s -t %d -i "%s"`,
				timecode.FromSeconds(start), p.chunkSeconds, req.VideoSource)

			for j, target := range targets {
				chunkFile := filepath.Join(destFolder,
					fmt.Sprintf("%s_%d_%d%s", prefix, j, start, destExt))

				sb.WriteString(" ")
				sb.WriteString(p.renditionTail(target, req.EnableDash, media.Framerate, chunkFile))

				parts = append(parts, &models.Part{
					TargetIndex: j,
					Number:      k,
					Filename:    chunkFile,
				})
			}

			jobs = append(jobs, &models.Job{
				Arguments:     sb.String(),
				Needed:        req.Needed,
				Kind:          models.JobKindVideo,
				Source:        req.VideoSource,
				ChunkDuration: p.chunkSeconds,
				Active:        true,
			})
		}
	}

	return jobs, parts
}

// MuxInput describes a mux planning request.
type MuxInput struct {
	VideoSource string
	AudioSource string
	OutputPath  string
	// Inpoint is an optional seek offset applied before reading.
	Inpoint *time.Duration
	Needed  time.Time
	// DurationSeconds is the probed duration of the video source.
	DurationSeconds int
}

// PlanMux produces the single mux job for a mux request.
func (p *Planner) PlanMux(in MuxInput) *models.Job {
	var sb strings.Builder
	if in.Inpoint != nil {
		fmt.Fprintf(&sb, "-ss %s ", timecode.Format(*in.Inpoint))
	}
	fmt.Fprintf(&sb, `-xerror -i "%s" -i "%s" -map 0:v:0 -map 1:a:0 -c copy -y "%s"`,
		in.VideoSource, in.AudioSource, in.OutputPath)

	return &models.Job{
		Arguments:     sb.String(),
		Needed:        in.Needed,
		Kind:          models.JobKindMux,
		Source:        in.VideoSource,
		ChunkDuration: in.DurationSeconds,
		Active:        true,
	}
}

// renditionTail renders one target's output clause for a video chunk job.
// DASH parameters win over the CRF toggle; the default is constant bitrate.
func (p *Planner) renditionTail(target models.TargetRendition, dash bool, framerate float64, chunkFile string) string {
	switch {
	case dash:
		gop := int(math.Round(framerate * 4))
		return fmt.Sprintf(
			`-s %dx%d -c:v libx264 -g %d -keyint_min %d -profile:v high -b:v %dk -level 4.1 -pix_fmt yuv420p -an "%s"`,
			target.Width, target.Height, gop, gop, target.VideoBitrate, chunkFile)
	case p.enableCRF:
		buf := (target.VideoBitrate / 8) * p.chunkSeconds
		return fmt.Sprintf(
			`-s %dx%d -c:v libx264 -profile:v high -crf 18 -preset medium -maxrate %dk -bufsize %dk -level 4.1 -pix_fmt yuv420p -an "%s"`,
			target.Width, target.Height, target.VideoBitrate, buf, chunkFile)
	default:
		return fmt.Sprintf(
			`-s %dx%d -c:v libx264 -profile:v high -b:v %dk -level 4.1 -pix_fmt yuv420p -an "%s"`,
			target.Width, target.Height, target.VideoBitrate, chunkFile)
	}
}

// outputPrefix is the destination's base name without its extension.
func outputPrefix(destination string) string {
	base := filepath.Base(destination)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// chunkCount returns how many chunks cover the duration.
func chunkCount(durationSeconds, chunkSeconds int) int {
	if durationSeconds <= 0 || chunkSeconds <= 0 {
		return 0
	}
	return (durationSeconds + chunkSeconds - 1) / chunkSeconds
}
