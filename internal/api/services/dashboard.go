package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rohits-web03/opsdash/internal/logger"
	"github.com/rohits-web03/opsdash/internal/models"
	"github.com/rohits-web03/opsdash/internal/repositories"
)

const recentTaskCount = 5

type BudgetSummary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

type Summary struct {
	Counts           map[string]int64 `json:"counts"`
	TasksByStatus    map[string]int64 `json:"tasksByStatus"`
	ProjectsByStatus map[string]int64 `json:"projectsByStatus"`
	ActiveProjects   int64            `json:"activeProjects"`
	BackupsByStatus  map[string]int64 `json:"backupsByStatus"`
	Budget           BudgetSummary    `json:"budget"`
	RecentTasks      []models.Task    `json:"recentTasks"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

// SummaryCache holds a recently computed Summary. A miss returns ok=false.
type SummaryCache interface {
	Get(ctx context.Context) (*Summary, bool, error)
	Set(ctx context.Context, s *Summary) error
}

type DashboardService struct {
	staff     *repositories.Repository[models.Staff]
	projects  *repositories.Repository[models.Project]
	tasks     *repositories.TaskRepository
	contracts *repositories.Repository[models.Contract]
	budget    *repositories.BudgetRepository
	backups   *repositories.Repository[models.CloudBackup]
	cache     SummaryCache
	log       *logger.Logger
}

func NewDashboardService(
	staff *repositories.Repository[models.Staff],
	projects *repositories.Repository[models.Project],
	tasks *repositories.TaskRepository,
	contracts *repositories.Repository[models.Contract],
	budget *repositories.BudgetRepository,
	backups *repositories.Repository[models.CloudBackup],
	cache SummaryCache,
	log *logger.Logger,
) *DashboardService {
	if log == nil {
		log = logger.Nop()
	}
	return &DashboardService{
		staff: staff, projects: projects, tasks: tasks, contracts: contracts,
		budget: budget, backups: backups, cache: cache, log: log,
	}
}

// Summary returns the cached summary when one is fresh, otherwise computes it.
// Cache errors are logged and treated as misses.
func (s *DashboardService) Summary(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.For(ctx).Warn("dashboard cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	sum, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, sum); err != nil {
			s.log.For(ctx).Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return sum, nil
}

func (s *DashboardService) compute(ctx context.Context) (*Summary, error) {
	var (
		sum = &Summary{Counts: make(map[string]int64)}

		staffN, projectN, taskN, contractN, budgetN, backupN int64
		totals                                               map[string]float64
	)

	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int64, fn func(context.Context, map[string]any) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx, nil)
			*dst = n
			return err
		})
	}
	count(&staffN, s.staff.Count)
	count(&projectN, s.projects.Count)
	count(&taskN, s.tasks.Count)
	count(&contractN, s.contracts.Count)
	count(&budgetN, s.budget.Count)
	count(&backupN, s.backups.Count)

	g.Go(func() (err error) {
		sum.TasksByStatus, err = s.tasks.CountBy(ctx, "status")
		return err
	})
	g.Go(func() (err error) {
		sum.ProjectsByStatus, err = s.projects.CountBy(ctx, "status")
		return err
	})
	g.Go(func() (err error) {
		sum.BackupsByStatus, err = s.backups.CountBy(ctx, "status")
		return err
	})
	g.Go(func() (err error) {
		totals, err = s.budget.Totals(ctx)
		return err
	})
	g.Go(func() (err error) {
		sum.RecentTasks, err = s.tasks.Recent(ctx, recentTaskCount)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum.Counts["staff"] = staffN
	sum.Counts["projects"] = projectN
	sum.Counts["tasks"] = taskN
	sum.Counts["contracts"] = contractN
	sum.Counts["budgetEntries"] = budgetN
	sum.Counts["backups"] = backupN
	sum.ActiveProjects = sum.ProjectsByStatus[models.ProjectActive]
	sum.Budget = BudgetSummary{
		Income:  totals[models.BudgetIncome],
		Expense: totals[models.BudgetExpense],
	}
	sum.Budget.Balance = sum.Budget.Income - sum.Budget.Expense
	if sum.RecentTasks == nil {
		sum.RecentTasks = []models.Task{}
	}
	sum.GeneratedAt = time.Now().UTC()
	return sum, nil
}
