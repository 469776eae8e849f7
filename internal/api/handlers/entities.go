package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rohits-web03/opsdash/internal/models"
)

type StaffInput struct {
	Name       string     `json:"name" validate:"required,max=200"`
	Email      string     `json:"email" validate:"required,email"`
	Role       string     `json:"role" validate:"required,max=100"`
	Department string     `json:"department" validate:"max=100"`
	Phone      string     `json:"phone" validate:"max=50"`
	Status     string     `json:"status" validate:"omitempty,oneof=active inactive on-leave"`
	HireDate   *time.Time `json:"hireDate"`
}

func (in StaffInput) apply(m *models.Staff) {
	m.Name = in.Name
	m.Email = in.Email
	m.Role = in.Role
	m.Department = in.Department
	m.Phone = in.Phone
	m.Status = orDefault(in.Status, "active")
	m.HireDate = in.HireDate
}

type ProjectInput struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description"`
	Status      string     `json:"status" validate:"omitempty,oneof=planning active on-hold completed cancelled"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Budget      float64    `json:"budget" validate:"gte=0"`
	ManagerID   *uuid.UUID `json:"managerId"`
}

func (in ProjectInput) apply(m *models.Project) {
	m.Name = in.Name
	m.Description = in.Description
	m.Status = orDefault(in.Status, "planning")
	m.StartDate = in.StartDate
	m.EndDate = in.EndDate
	m.Budget = in.Budget
	m.ManagerID = in.ManagerID
}

type ContractInput struct {
	Title     string     `json:"title" validate:"required,max=200"`
	Party     string     `json:"party" validate:"required,max=200"`
	Value     float64    `json:"value" validate:"gte=0"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	Status    string     `json:"status" validate:"omitempty,oneof=draft active expired terminated"`
	ProjectID *uuid.UUID `json:"projectId"`
}

func (in ContractInput) apply(m *models.Contract) {
	m.Title = in.Title
	m.Party = in.Party
	m.Value = in.Value
	m.StartDate = in.StartDate
	m.EndDate = in.EndDate
	m.Status = orDefault(in.Status, "draft")
	m.ProjectID = in.ProjectID
}

type BudgetInput struct {
	Description string     `json:"description" validate:"required,max=500"`
	Amount      float64    `json:"amount" validate:"gt=0"`
	Type        string     `json:"type" validate:"required,oneof=income expense"`
	Category    string     `json:"category" validate:"max=100"`
	Date        *time.Time `json:"date"`
	ProjectID   *uuid.UUID `json:"projectId"`
}

func (in BudgetInput) apply(m *models.BudgetEntry) {
	m.Description = in.Description
	m.Amount = in.Amount
	m.Type = in.Type
	m.Category = in.Category
	m.Date = in.Date
	m.ProjectID = in.ProjectID
}

type BackupInput struct {
	Name         string     `json:"name" validate:"required,max=200"`
	Provider     string     `json:"provider" validate:"required,max=100"`
	Location     string     `json:"location"`
	SizeBytes    int64      `json:"sizeBytes" validate:"gte=0"`
	Status       string     `json:"status" validate:"omitempty,oneof=pending in-progress completed failed"`
	LastBackupAt *time.Time `json:"lastBackupAt"`
}

func (in BackupInput) apply(m *models.CloudBackup) {
	m.Name = in.Name
	m.Provider = in.Provider
	m.Location = in.Location
	m.SizeBytes = in.SizeBytes
	m.Status = orDefault(in.Status, "pending")
	m.LastBackupAt = in.LastBackupAt
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// GET /api/v1/staff
// ListStaff godoc
// @Summary List staff members
// @Tags Staff
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param status query string false "Filter by status"
// @Param department query string false "Filter by department"
// @Param role query string false "Filter by role"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/staff [get]
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) { h.staff.list(w, r) }

// GET /api/v1/staff/{id}
// GetStaff godoc
// @Summary Get a staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/staff/{id} [get]
func (h *Handler) GetStaff(w http.ResponseWriter, r *http.Request) { h.staff.get(w, r) }

// POST /api/v1/staff
// CreateStaff godoc
// @Summary Create a staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param body body StaffInput true "Staff member"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload "Email already in use"
// @Router /api/v1/staff [post]
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) { h.staff.create(w, r) }

// PUT /api/v1/staff/{id}
// UpdateStaff godoc
// @Summary Replace a staff member's fields
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param body body StaffInput true "Staff member"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/staff/{id} [put]
func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) { h.staff.update(w, r) }

// DELETE /api/v1/staff/{id}
// DeleteStaff godoc
// @Summary Delete a staff member
// @Description Tasks and projects referencing the member keep existing with the reference cleared.
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/staff/{id} [delete]
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) { h.staff.remove(w, r) }

// GET /api/v1/projects
// ListProjects godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param status query string false "Filter by status"
// @Param managerId query string false "Filter by manager"
// @Success 200 {object} utils.Payload
// @Router /api/v1/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) { h.projects.list(w, r) }

// GET /api/v1/projects/{id}
// GetProject godoc
// @Summary Get a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/projects/{id} [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) { h.projects.get(w, r) }

// POST /api/v1/projects
// CreateProject godoc
// @Summary Create a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param body body ProjectInput true "Project"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) { h.projects.create(w, r) }

// PUT /api/v1/projects/{id}
// UpdateProject godoc
// @Summary Replace a project's fields
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body ProjectInput true "Project"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/projects/{id} [put]
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) { h.projects.update(w, r) }

// DELETE /api/v1/projects/{id}
// DeleteProject godoc
// @Summary Delete a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/projects/{id} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) { h.projects.remove(w, r) }

// GET /api/v1/contracts
// ListContracts godoc
// @Summary List contracts
// @Tags Contracts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param status query string false "Filter by status"
// @Param projectId query string false "Filter by project"
// @Success 200 {object} utils.Payload
// @Router /api/v1/contracts [get]
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) { h.contracts.list(w, r) }

// GET /api/v1/contracts/{id}
// GetContract godoc
// @Summary Get a contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/contracts/{id} [get]
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) { h.contracts.get(w, r) }

// POST /api/v1/contracts
// CreateContract godoc
// @Summary Create a contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param body body ContractInput true "Contract"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/contracts [post]
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) { h.contracts.create(w, r) }

// PUT /api/v1/contracts/{id}
// UpdateContract godoc
// @Summary Replace a contract's fields
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param body body ContractInput true "Contract"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/contracts/{id} [put]
func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) { h.contracts.update(w, r) }

// DELETE /api/v1/contracts/{id}
// DeleteContract godoc
// @Summary Delete a contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/contracts/{id} [delete]
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) { h.contracts.remove(w, r) }

// GET /api/v1/budget
// ListBudgetEntries godoc
// @Summary List budget entries
// @Tags Budget
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param type query string false "income or expense"
// @Param category query string false "Filter by category"
// @Param projectId query string false "Filter by project"
// @Success 200 {object} utils.Payload
// @Router /api/v1/budget [get]
func (h *Handler) ListBudgetEntries(w http.ResponseWriter, r *http.Request) { h.budget.list(w, r) }

// GET /api/v1/budget/{id}
// GetBudgetEntry godoc
// @Summary Get a budget entry
// @Tags Budget
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/budget/{id} [get]
func (h *Handler) GetBudgetEntry(w http.ResponseWriter, r *http.Request) { h.budget.get(w, r) }

// POST /api/v1/budget
// CreateBudgetEntry godoc
// @Summary Record income or an expense
// @Tags Budget
// @Accept json
// @Produce json
// @Param body body BudgetInput true "Budget entry"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/budget [post]
func (h *Handler) CreateBudgetEntry(w http.ResponseWriter, r *http.Request) { h.budget.create(w, r) }

// PUT /api/v1/budget/{id}
// UpdateBudgetEntry godoc
// @Summary Replace a budget entry's fields
// @Tags Budget
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param body body BudgetInput true "Budget entry"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/budget/{id} [put]
func (h *Handler) UpdateBudgetEntry(w http.ResponseWriter, r *http.Request) { h.budget.update(w, r) }

// DELETE /api/v1/budget/{id}
// DeleteBudgetEntry godoc
// @Summary Delete a budget entry
// @Tags Budget
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/budget/{id} [delete]
func (h *Handler) DeleteBudgetEntry(w http.ResponseWriter, r *http.Request) { h.budget.remove(w, r) }

// GET /api/v1/backups
// ListBackups godoc
// @Summary List cloud backup records
// @Tags Backups
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param status query string false "Filter by status"
// @Param provider query string false "Filter by provider"
// @Success 200 {object} utils.Payload
// @Router /api/v1/backups [get]
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) { h.backups.list(w, r) }

// GET /api/v1/backups/{id}
// GetBackup godoc
// @Summary Get a cloud backup record
// @Tags Backups
// @Produce json
// @Param id path string true "Backup ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/backups/{id} [get]
func (h *Handler) GetBackup(w http.ResponseWriter, r *http.Request) { h.backups.get(w, r) }

// POST /api/v1/backups
// CreateBackup godoc
// @Summary Create a cloud backup record
// @Tags Backups
// @Accept json
// @Produce json
// @Param body body BackupInput true "Backup"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/backups [post]
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) { h.backups.create(w, r) }

// PUT /api/v1/backups/{id}
// UpdateBackup godoc
// @Summary Replace a cloud backup record's fields
// @Tags Backups
// @Accept json
// @Produce json
// @Param id path string true "Backup ID"
// @Param body body BackupInput true "Backup"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/backups/{id} [put]
func (h *Handler) UpdateBackup(w http.ResponseWriter, r *http.Request) { h.backups.update(w, r) }

// DELETE /api/v1/backups/{id}
// DeleteBackup godoc
// @Summary Delete a cloud backup record
// @Tags Backups
// @Produce json
// @Param id path string true "Backup ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/backups/{id} [delete]
func (h *Handler) DeleteBackup(w http.ResponseWriter, r *http.Request) { h.backups.remove(w, r) }
