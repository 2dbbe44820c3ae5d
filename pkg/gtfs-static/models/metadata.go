package models

import "time"

// VersionInfo describes one imported timetable version in the database.
type VersionInfo struct {
	VersionID   int
	VersionName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsActive    bool
	SourcePath  string
	Description string
}
