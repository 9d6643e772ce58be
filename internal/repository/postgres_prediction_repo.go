package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mammogate/internal/model"
)

// PostgresPredictionRepo はPostgreSQLを使用した予測記録リポジトリ。
type PostgresPredictionRepo struct {
	db *sql.DB
}

// NewPostgresPredictionRepo はPostgresPredictionRepoを生成する。
func NewPostgresPredictionRepo(db *sql.DB) *PostgresPredictionRepo {
	return &PostgresPredictionRepo{db: db}
}

// Create は予測記録を作成し、ストア採番のIDとcreated_atを書き戻す。
func (r *PostgresPredictionRepo) Create(ctx context.Context, rec *model.PredictionRecord) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO predictions (label, confidence, source_name)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		string(rec.Label), rec.Confidence, rec.SourceName,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	return nil
}

// FindByID は指定IDの記録を取得する。見つからない場合はnilを返す。
func (r *PostgresPredictionRepo) FindByID(ctx context.Context, id int64) (*model.PredictionRecord, error) {
	rec := &model.PredictionRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, label, confidence, source_name, created_at FROM predictions WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.Label, &rec.Confidence, &rec.SourceName, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prediction by ID: %w", err)
	}

	return rec, nil
}

// List は挿入順（ID昇順）で記録を取得する。
func (r *PostgresPredictionRepo) List(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, confidence, source_name, created_at
		 FROM predictions
		 ORDER BY id ASC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	records := make([]*model.PredictionRecord, 0)
	for rows.Next() {
		rec := &model.PredictionRecord{}
		if err := rows.Scan(&rec.ID, &rec.Label, &rec.Confidence, &rec.SourceName, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prediction rows: %w", err)
	}

	return records, nil
}

// Update は指定フィールドのみを更新し、更新後の記録を返す。
// nilのフィールドはCOALESCEにより既存値を維持する。
func (r *PostgresPredictionRepo) Update(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error) {
	var label *string
	if update.Label != nil {
		s := string(*update.Label)
		label = &s
	}

	rec := &model.PredictionRecord{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE predictions
		 SET label = COALESCE($2, label),
		     confidence = COALESCE($3, confidence),
		     source_name = COALESCE($4, source_name)
		 WHERE id = $1
		 RETURNING id, label, confidence, source_name, created_at`,
		id, label, update.Confidence, update.SourceName,
	).Scan(&rec.ID, &rec.Label, &rec.Confidence, &rec.SourceName, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update prediction: %w", err)
	}

	return rec, nil
}

// DeleteByID は指定IDの記録を削除する。対象が存在しない場合はErrNotFoundを返す。
func (r *PostgresPredictionRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM predictions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats は全記録から集計統計を1クエリで導出する。
// positive_percentageの算出はサービス層で行う。
func (r *PostgresPredictionRepo) Stats(ctx context.Context) (*model.PredictionStats, error) {
	stats := &model.PredictionStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE label = 'Positive'),
		        COUNT(*) FILTER (WHERE label = 'Negative')
		 FROM predictions`,
	).Scan(&stats.Total, &stats.PositiveCount, &stats.NegativeCount)

	if err != nil {
		return nil, fmt.Errorf("failed to query prediction stats: %w", err)
	}

	return stats, nil
}

// compile-time interface check
var _ PredictionRepository = (*PostgresPredictionRepo)(nil)
