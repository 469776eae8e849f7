package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions selects one page of records. Filters are column equality matches.
type ListOptions struct {
	Page    int
	Limit   int
	Filters map[string]any
}

// Normalized clamps Page and Limit into range.
func (o ListOptions) Normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	return o
}

// Repository is the CRUD surface shared by every entity. Preload names the
// relations populated on reads.
type Repository[T any] struct {
	db      *gorm.DB
	preload []string
}

func NewRepository[T any](db *gorm.DB, preload ...string) *Repository[T] {
	return &Repository[T]{db: db, preload: preload}
}

func (r *Repository[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, p := range r.preload {
		q = q.Preload(p)
	}
	return q
}

// List returns the requested page, newest first, and the total match count.
func (r *Repository[T]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	opts = opts.Normalized()

	var total int64
	q := r.db.WithContext(ctx).Model(new(T))
	if len(opts.Filters) > 0 {
		q = q.Where(opts.Filters)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := make([]T, 0, opts.Limit)
	q = r.query(ctx)
	if len(opts.Filters) > 0 {
		q = q.Where(opts.Filters)
	}
	err := q.Order("created_at DESC").
		Offset((opts.Page - 1) * opts.Limit).
		Limit(opts.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var item T
	if err := r.query(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *Repository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *Repository[T]) Create(ctx context.Context, item *T) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error)
}

// Update writes every column of item except the primary key, creation time
// and relations. item must carry its ID.
func (r *Repository[T]) Update(ctx context.Context, item *T) error {
	res := r.db.WithContext(ctx).
		Model(item).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(item)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns how many rows match the optional equality filters.
func (r *Repository[T]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(new(T))
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	err := q.Count(&n).Error
	return n, err
}

type groupRow struct {
	GroupKey string
	Count    int64
}

// CountBy returns row counts grouped by column. column must be a trusted column name.
func (r *Repository[T]) CountBy(ctx context.Context, column string) (map[string]int64, error) {
	var rows []groupRow
	err := r.db.WithContext(ctx).
		Model(new(T)).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.Count
	}
	return out, nil
}
