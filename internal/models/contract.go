package models

import (
	"time"

	"github.com/google/uuid"
)

type Contract struct {
	Base
	Title     string     `json:"title" gorm:"not null"`
	Party     string     `json:"party" gorm:"not null"` // client or vendor
	Value     float64    `json:"value" gorm:"not null;default:0"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	Status    string     `json:"status" gorm:"not null;default:draft"`
	ProjectID *uuid.UUID `json:"projectId" gorm:"type:uuid;index"`
	Project   *Project   `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL"`
}
