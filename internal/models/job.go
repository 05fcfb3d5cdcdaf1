package models

import (
	"time"
)

// JobKind represents the kind of unit job a worker executes.
type JobKind string

const (
	// JobKindAudio is a per-target audio encode covering the full duration.
	JobKindAudio JobKind = "audio"
	// JobKindVideo is a chunked video encode emitting every target rendition.
	JobKindVideo JobKind = "video"
	// JobKindMux is a single remux of a video track with an audio track.
	JobKindMux JobKind = "mux"
)

// LeaseState describes where a job sits in the dispatch lifecycle.
type LeaseState string

const (
	// LeaseStateQueued means the job has never been claimed.
	LeaseStateQueued LeaseState = "queued"
	// LeaseStateLeased means a worker holds the job and its heartbeat is fresh.
	LeaseStateLeased LeaseState = "leased"
	// LeaseStateExpired means the holder stopped heartbeating; the job is
	// dispatchable again.
	LeaseStateExpired LeaseState = "expired"
	// LeaseStateDone means the job finished.
	LeaseStateDone LeaseState = "done"
	// LeaseStatePaused means the job was deactivated before any worker took it.
	LeaseStatePaused LeaseState = "paused"
)

// Job is one unit of work: a single invocation of the external media tool.
// The integer id is the stable tiebreak for deadline-ordered dispatch.
type Job struct {
	ID int64 `gorm:"primarykey;autoIncrement" json:"id"`

	// CorrelationID is the owning request's id.
	CorrelationID ULID `gorm:"type:varchar(26);not null;index" json:"correlation_id"`

	// Arguments is the full argument string handed to the tool launcher on
	// the worker. It is the wire contract; treat it as opaque once planned.
	Arguments string `gorm:"size:8192;not null" json:"arguments"`

	// Needed is inherited from the request and drives dispatch order.
	Needed time.Time `gorm:"not null;index" json:"needed"`

	// Kind is audio, video, or mux.
	Kind JobKind `gorm:"not null;size:10" json:"kind"`

	// Source is the input file the job reads.
	Source string `gorm:"size:1024" json:"source"`

	// ChunkDuration is the planned chunk length in seconds. Audio and mux
	// jobs record the full source duration here.
	ChunkDuration int `json:"chunk_duration"`

	// Active is cleared by Pause; inactive jobs are never dispatched.
	Active bool `gorm:"not null;default:true" json:"active"`

	// Taken is set when a worker claims the job.
	Taken bool `gorm:"not null;default:false" json:"taken"`

	// Done is set when a worker reports completion. Done implies Taken.
	Done bool `gorm:"not null;default:false" json:"done"`

	// Heartbeat is the claim holder's last keep-alive. Nil until first claimed.
	Heartbeat *time.Time `json:"heartbeat,omitempty"`

	// LastError holds the reason from the last failure report.
	LastError string `gorm:"size:4096" json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// Dispatchable reports whether the job may be handed to a worker at now:
// it must be active, not done, and either never taken or its lease expired.
func (j *Job) Dispatchable(now time.Time, leaseTimeout time.Duration) bool {
	if !j.Active || j.Done {
		return false
	}
	if !j.Taken {
		return true
	}
	return j.Heartbeat != nil && now.Sub(*j.Heartbeat) > leaseTimeout
}

// State derives the lease state for now.
func (j *Job) State(now time.Time, leaseTimeout time.Duration) LeaseState {
	switch {
	case j.Done:
		return LeaseStateDone
	case !j.Active:
		return LeaseStatePaused
	case !j.Taken:
		return LeaseStateQueued
	case j.Heartbeat != nil && now.Sub(*j.Heartbeat) > leaseTimeout:
		return LeaseStateExpired
	default:
		return LeaseStateLeased
	}
}
