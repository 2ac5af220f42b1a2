package models

import (
	"time"

	"github.com/lib/pq"
)

// Job and Skill form the read-only selection catalog. Administration of these
// tables happens outside this service.

type Job struct {
	ID       string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title    string         `gorm:"column:title;type:text" json:"title"`
	Level    string         `gorm:"column:level;type:text" json:"level"` // junior|mid|senior
	Keywords pq.StringArray `gorm:"column:keywords;type:text[]" json:"keywords"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Job) TableName() string { return "jobs" }

type Skill struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name     string `gorm:"column:name;type:text;uniqueIndex" json:"name"`
	Category string `gorm:"column:category;type:text" json:"category"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Skill) TableName() string { return "skills" }
