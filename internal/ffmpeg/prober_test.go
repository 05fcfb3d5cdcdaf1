package ffmpeg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcodarr/transcodarr/internal/models"
)

func TestMediaInfoFromProbeResult(t *testing.T) {
	payload := `{
		"format": {"duration": "180.480000"},
		"streams": [
			{"codec_type": "audio", "avg_frame_rate": "0/0"},
			{"codec_type": "video", "avg_frame_rate": "25/1", "r_frame_rate": "25/1"}
		]
	}`

	var result probeResult
	require.NoError(t, json.Unmarshal([]byte(payload), &result))

	info, err := result.mediaInfo()
	require.NoError(t, err)
	assert.Equal(t, 180, info.DurationSeconds)
	assert.InDelta(t, 25.0, info.Framerate, 1e-9)
}

func TestMediaInfoFallsBackToRFrameRate(t *testing.T) {
	result := probeResult{
		Format: probeFormat{Duration: "60.0"},
		Streams: []probeStream{
			{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "30000/1001"},
		},
	}

	info, err := result.mediaInfo()
	require.NoError(t, err)
	assert.InDelta(t, 29.97, info.Framerate, 0.01)
}

func TestMediaInfoAudioOnly(t *testing.T) {
	result := probeResult{
		Format:  probeFormat{Duration: "90.5"},
		Streams: []probeStream{{CodecType: "audio"}},
	}

	info, err := result.mediaInfo()
	require.NoError(t, err)
	assert.Equal(t, 90, info.DurationSeconds)
	assert.Zero(t, info.Framerate)
}

func TestMediaInfoErrors(t *testing.T) {
	tests := []struct {
		name   string
		result probeResult
	}{
		{"missing duration", probeResult{}},
		{"malformed duration", probeResult{Format: probeFormat{Duration: "n/a"}}},
		{"zero duration", probeResult{Format: probeFormat{Duration: "0"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.result.mediaInfo()
			assert.ErrorIs(t, err, models.ErrProbeFailed)
		})
	}
}

func TestNewProberDefaults(t *testing.T) {
	p := NewProber("/opt/ffmpeg/bin/ffprobe")
	assert.Equal(t, "/opt/ffmpeg/bin/ffprobe", p.ffprobePath)
	assert.Equal(t, defaultProbeTimeout, p.timeout)

	p = p.WithTimeout(defaultProbeTimeout / 2)
	assert.Equal(t, defaultProbeTimeout/2, p.timeout)

	// Empty path resolves to something runnable.
	p = NewProber("")
	assert.NotEmpty(t, p.ffprobePath)
}
