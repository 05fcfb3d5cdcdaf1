package models

import "time"

// Worker is a liveness row for a polling worker machine, upserted on every
// poll. The server keeps no other per-worker state; a worker that stops
// polling simply goes stale.
type Worker struct {
	MachineName string    `gorm:"primarykey;size:255" json:"machine_name"`
	LastSeen    time.Time `gorm:"not null" json:"last_seen"`
}

// TableName returns the table name for Worker.
func (Worker) TableName() string {
	return "workers"
}

// Alive reports whether the worker polled within the given window.
func (w *Worker) Alive(now time.Time, window time.Duration) bool {
	return now.Sub(w.LastSeen) <= window
}
