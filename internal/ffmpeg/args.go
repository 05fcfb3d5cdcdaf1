// Package ffmpeg provides argument synthesis and media probing for the
// external media tool. The argument strings built here are the wire
// contract between the server and the tool launcher on each worker, so
// emission order and token formatting are fixed and observable.
package ffmpeg

import (
	"fmt"
	"strings"
)

// DeinterlaceMode selects how yadif emits frames.
type DeinterlaceMode string

const (
	// DeinterlaceSendFrame outputs one frame per frame.
	DeinterlaceSendFrame DeinterlaceMode = "send_frame"
	// DeinterlaceSendField outputs one frame per field.
	DeinterlaceSendField DeinterlaceMode = "send_field"
)

// FieldParity declares which field of an interlaced source comes first.
type FieldParity string

const (
	// ParityAuto lets the filter detect field order.
	ParityAuto FieldParity = "auto"
	// ParityTopFirst marks the top field as first.
	ParityTopFirst FieldParity = "tff"
	// ParityBottomFirst marks the bottom field as first.
	ParityBottomFirst FieldParity = "bff"
)

// yadif integer encodings.
func (m DeinterlaceMode) filterValue() (int, bool) {
	switch m {
	case DeinterlaceSendFrame:
		return 0, true
	case DeinterlaceSendField:
		return 1, true
	default:
		return 0, false
	}
}

func (p FieldParity) filterValue() (int, bool) {
	switch p {
	case ParityAuto:
		return -1, true
	case ParityTopFirst:
		return 0, true
	case ParityBottomFirst:
		return 1, true
	default:
		return 0, false
	}
}

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

// VideoSettings describes the video encode of a parameter record.
type VideoSettings struct {
	Codec string
	// BitrateBps is in bits per second; it is emitted as truncated kbit/s.
	BitrateBps int
	// Preset is the encoder preset; empty means "medium".
	Preset string
	Size   *Size
}

// AudioSettings describes the audio encode of a parameter record.
type AudioSettings struct {
	Codec string
	// BitrateBps is in bits per second; it is emitted as truncated kbit/s.
	BitrateBps int
}

// DeinterlaceSettings describes an optional yadif deinterlace stage.
type DeinterlaceSettings struct {
	Mode      DeinterlaceMode
	Parity    FieldParity
	AllFrames bool
}

// EncodeParams is the parameter record BuildArgs maps to an argument string.
type EncodeParams struct {
	InputFile   string
	Video       *VideoSettings
	Audio       *AudioSettings
	Deinterlace *DeinterlaceSettings
}

// defaultPreset is used when video settings carry no preset.
const defaultPreset = "medium"

// BuildArgs deterministically renders a parameter record as the tool's
// argument string. The function is total: a record with no video, audio,
// or deinterlace settings yields just the input clause.
//
// Deinterlacing and scaling are mutually exclusive in the output; when both
// are present the deinterlace filter wins and the scale is dropped, since
// composing the two into one filter graph is not supported yet.
func BuildArgs(p EncodeParams) string {
	tokens := []string{"-i", quote(p.InputFile)}

	if expr, ok := deinterlaceExpr(p.Deinterlace); ok {
		tokens = append(tokens, "-filter_complex", quote(expr))
	} else if p.Video != nil && p.Video.Size != nil {
		scale := fmt.Sprintf("scale=%d:%d", p.Video.Size.Width, p.Video.Size.Height)
		tokens = append(tokens, "-filter_complex", quote(scale))
	}

	if p.Video != nil {
		preset := p.Video.Preset
		if preset == "" {
			preset = defaultPreset
		}
		tokens = append(tokens,
			"-codec:v", strings.ToLower(p.Video.Codec),
			"-preset", preset,
			"-b:v", fmt.Sprintf("%dk", p.Video.BitrateBps/1000),
		)
	}

	if p.Audio != nil {
		tokens = append(tokens,
			"-codec:a", strings.ToLower(p.Audio.Codec),
			"-b:a", fmt.Sprintf("%dk", p.Audio.BitrateBps/1000),
		)
	}

	return strings.Join(tokens, " ")
}

// quote wraps a value in double quotes verbatim. Callers must not embed
// literal double quotes.
func quote(s string) string {
	return `"` + s + `"`
}

// deinterlaceExpr renders the yadif filter expression. It reports false
// when settings are absent or mode/parity are not recognised.
func deinterlaceExpr(d *DeinterlaceSettings) (string, bool) {
	if d == nil {
		return "", false
	}
	mode, ok := d.Mode.filterValue()
	if !ok {
		return "", false
	}
	parity, ok := d.Parity.filterValue()
	if !ok {
		return "", false
	}
	all := 0
	if d.AllFrames {
		all = 1
	}
	return fmt.Sprintf("yadif=%d:%d:%d", mode, parity, all), true
}
