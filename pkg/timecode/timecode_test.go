package timecode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSeconds(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    string
	}{
		{"zero", 0, "00:00:00"},
		{"one minute", 60, "00:01:00"},
		{"two minutes", 120, "00:02:00"},
		{"just under an hour", 3599, "00:59:59"},
		{"one hour", 3600, "01:00:00"},
		{"mixed", 3723, "01:02:03"},
		{"long movie", 2*3600 + 45*60 + 30, "02:45:30"},
		{"negative clamps to zero", -5, "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromSeconds(tt.seconds))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0:00:00"},
		{"five seconds", 5 * time.Second, "0:00:05"},
		{"ninety seconds", 90 * time.Second, "0:01:30"},
		{"hour is not padded", time.Hour + 5*time.Second, "1:00:05"},
		{"sub-second truncated", 5*time.Second + 900*time.Millisecond, "0:00:05"},
		{"negative clamps to zero", -time.Second, "0:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.d))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:05", 5 * time.Second, false},
		{"0:00:05", 5 * time.Second, false},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"02:30", 2*time.Minute + 30*time.Second, false},
		{"90", 90 * time.Second, false},
		{"90.5", 90*time.Second + 500*time.Millisecond, false},
		{"00:01:30.250", time.Minute + 30*time.Second + 250*time.Millisecond, false},
		{"", 0, true},
		{"1:2:3:4", 0, true},
		{"xx:00:00", 0, true},
		{"00:61:00", 0, true},
		{"00:00:61", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, 5 * time.Second, 90 * time.Second, 2 * time.Hour} {
		parsed, err := Parse(Format(d))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
}
