package models

// Part is a planned output fragment on disk: write-once metadata created at
// planning time, naming a file some job materialises later. Parts are
// addressed by (correlation id, target index, chunk number); audio parts
// use number 0, as does the first video chunk of the same target, so the
// tuple is an index rather than a primary key.
type Part struct {
	ID int64 `gorm:"primarykey;autoIncrement" json:"id"`

	CorrelationID ULID `gorm:"type:varchar(26);not null;index:idx_parts_identity" json:"correlation_id"`

	// TargetIndex references the position of the rendition in the submitted
	// target list.
	TargetIndex int `gorm:"not null;index:idx_parts_identity" json:"target_index"`

	// Number is the chunk number within the target; audio parts use 0.
	Number int `gorm:"not null;index:idx_parts_identity" json:"number"`

	// Filename is the output path the worker will produce.
	Filename string `gorm:"size:1024;not null" json:"filename"`
}

// TableName returns the table name for Part.
func (Part) TableName() string {
	return "parts"
}
