package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the columns every record shares. IDs are assigned in Go so the
// schema does not depend on a database-side uuid extension.
type Base struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Key returns the record id.
func (b Base) Key() uuid.UUID {
	return b.ID
}

// All lists every model for AutoMigrate, parents before children.
func All() []any {
	return []any{
		&Staff{},
		&Project{},
		&Task{},
		&Contract{},
		&BudgetEntry{},
		&CloudBackup{},
	}
}
