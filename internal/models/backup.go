package models

import "time"

var BackupStatuses = []string{"pending", "in-progress", "completed", "failed"}

// CloudBackup records a backup job run against a cloud provider.
type CloudBackup struct {
	Base
	Name         string     `json:"name" gorm:"not null"`
	Provider     string     `json:"provider" gorm:"not null"`
	Location     string     `json:"location"`
	SizeBytes    int64      `json:"sizeBytes" gorm:"not null;default:0"`
	Status       string     `json:"status" gorm:"index;not null;default:pending"`
	LastBackupAt *time.Time `json:"lastBackupAt"`
}
