package models

import (
	"time"

	"github.com/google/uuid"
)

const ProjectActive = "active"

type Project struct {
	Base
	Name        string     `json:"name" gorm:"not null"`
	Description string     `json:"description"`
	Status      string     `json:"status" gorm:"index;not null;default:planning"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Budget      float64    `json:"budget" gorm:"not null;default:0"`
	ManagerID   *uuid.UUID `json:"managerId" gorm:"type:uuid;index"`
	Manager     *Staff     `json:"manager,omitempty" gorm:"foreignKey:ManagerID;constraint:OnDelete:SET NULL"`
}
