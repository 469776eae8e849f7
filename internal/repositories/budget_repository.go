package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/rohits-web03/opsdash/internal/models"
)

type BudgetRepository struct {
	*Repository[models.BudgetEntry]
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{
		Repository: NewRepository[models.BudgetEntry](db, "Project"),
		db:         db,
	}
}

// Totals sums entry amounts per type (income, expense).
func (r *BudgetRepository) Totals(ctx context.Context) (map[string]float64, error) {
	var rows []struct {
		Type  string
		Total float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.BudgetEntry{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}
