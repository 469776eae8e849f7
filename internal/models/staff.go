package models

import "time"

type Staff struct {
	Base
	Name       string     `json:"name" gorm:"not null"`
	Email      string     `json:"email" gorm:"uniqueIndex;not null"`
	Role       string     `json:"role" gorm:"not null"`
	Department string     `json:"department"`
	Phone      string     `json:"phone"`
	Status     string     `json:"status" gorm:"not null;default:active"` // active, inactive, on-leave
	HireDate   *time.Time `json:"hireDate"`
}

func (Staff) TableName() string {
	return "staff"
}
