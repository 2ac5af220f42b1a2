package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeFile is the metadata row for an uploaded resume; the bytes themselves
// live in media storage under FilePath. ExtractedText is what session creation
// feeds into question generation.
type ResumeFile struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID   string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	FileName string `gorm:"column:file_name;type:text" json:"file_name"`
	FilePath string `gorm:"column:file_path;type:text" json:"file_path"`

	FileSize int    `gorm:"column:file_size;type:integer" json:"file_size"`
	MimeType string `gorm:"column:mime_type;type:text" json:"mime_type"`

	ExtractedText string         `gorm:"column:extracted_text;type:text" json:"extracted_text"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`

	UploadAt time.Time `gorm:"column:upload_at;type:timestamptz" json:"upload_at"`
}

func (ResumeFile) TableName() string { return "resume_files" }
