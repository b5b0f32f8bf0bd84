package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SpreadSync/internal/model"

	"gorm.io/gorm"
)

// QueryResult tabular result of an ad-hoc query.
type QueryResult struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Truncated bool            `json:"truncated"`
}

type QueryRepository interface {
	InsertHistory(ctx context.Context, h *model.QueryHistory) error
	RecentHistory(ctx context.Context, limit int) ([]*model.QueryHistory, error)
	// ExecuteReadOnly runs statement in a read-only transaction and keeps at most maxRows rows.
	ExecuteReadOnly(ctx context.Context, statement string, maxRows int) (*QueryResult, error)
}

type queryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) QueryRepository {
	return &queryRepository{db: db}
}

func (r *queryRepository) InsertHistory(ctx context.Context, h *model.QueryHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *queryRepository) RecentHistory(ctx context.Context, limit int) ([]*model.QueryHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var list []*model.QueryHistory
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *queryRepository) ExecuteReadOnly(ctx context.Context, statement string, maxRows int) (*QueryResult, error) {
	tx := r.db.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: true})
	if tx.Error != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	rows, err := tx.Raw(statement).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
