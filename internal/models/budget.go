package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BudgetIncome  = "income"
	BudgetExpense = "expense"
)

type BudgetEntry struct {
	Base
	Description string     `json:"description" gorm:"not null"`
	Amount      float64    `json:"amount" gorm:"not null"`
	Type        string     `json:"type" gorm:"index;not null"` // income or expense
	Category    string     `json:"category"`
	Date        *time.Time `json:"date"`
	ProjectID   *uuid.UUID `json:"projectId" gorm:"type:uuid;index"`
	Project     *Project   `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL"`
}
