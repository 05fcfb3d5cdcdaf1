package models

import (
	"time"

	"gorm.io/gorm"
)

// Request is a logical user submission. It is created once and never
// mutated; its jobs and parts carry the same correlation id.
type Request struct {
	// CorrelationID binds the request's jobs and parts together.
	CorrelationID ULID `gorm:"primarykey;type:varchar(26)" json:"correlation_id"`

	// VideoSource is the path of the video input. Empty for audio-only requests.
	VideoSource string `gorm:"size:1024" json:"video_source,omitempty"`

	// AudioSource is the path of an alternate audio input. Empty unless the
	// request declared one (mux requests always set it).
	AudioSource string `gorm:"size:1024" json:"audio_source,omitempty"`

	// Destination is the output path prefix the planner derives filenames from.
	Destination string `gorm:"size:1024;not null" json:"destination"`

	// Needed is the deadline the submitter wants the output by. It is the
	// sole dispatch ordering key.
	Needed time.Time `gorm:"not null;index" json:"needed"`

	// CreatedAt is set on insert.
	CreatedAt time.Time `json:"created_at"`

	// EnableDash selects MPEG-DASH-compatible encoding parameters.
	EnableDash bool `json:"enable_dash"`
}

// TableName returns the table name for Request.
func (Request) TableName() string {
	return "requests"
}

// BeforeCreate generates a correlation id if not already set.
func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.CorrelationID.IsZero() {
		r.CorrelationID = NewULID()
	}
	return nil
}

// TargetRendition is one desired output profile. Targets are ordered; their
// index is stable and referenced by parts. Renditions are planning input
// only and are not persisted.
type TargetRendition struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// VideoBitrate is in kbit/s.
	VideoBitrate int `json:"video_bitrate"`
	// AudioBitrate is in kbit/s.
	AudioBitrate int `json:"audio_bitrate"`
}
