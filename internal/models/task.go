package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskTodo       = "todo"
	TaskInProgress = "in-progress"
	TaskReview     = "review"
	TaskCompleted  = "completed"
)

var TaskStatuses = []string{TaskTodo, TaskInProgress, TaskReview, TaskCompleted}

type Task struct {
	Base
	Title       string      `json:"title" gorm:"not null"`
	Description string      `json:"description"`
	Status      string      `json:"status" gorm:"index;not null;default:todo"`
	Priority    string      `json:"priority" gorm:"not null;default:medium"`
	DueDate     *time.Time  `json:"dueDate"`
	AssigneeID  *uuid.UUID  `json:"assigneeId" gorm:"type:uuid;index"`
	Assignee    *Staff      `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL"`
	ProjectID   *uuid.UUID  `json:"projectId" gorm:"type:uuid;index"`
	Project     *Project    `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL"`
	Attachments Attachments `json:"attachments" gorm:"type:text"`
	Version     int         `json:"version" gorm:"not null;default:1"` // bumped on every attachment change
}
