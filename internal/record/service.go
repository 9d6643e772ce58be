// Package record は予測記録のCRUDと集計統計のサービスを提供する。
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/repository"
	"github.com/hitoshi/mammogate/internal/security"
)

const (
	// defaultListLimit は一覧取得のデフォルト件数。
	defaultListLimit = 100
	// maxListLimit は一覧取得の最大件数。これを超える指定は切り詰める。
	maxListLimit = 500
)

// StoreService は予測記録ストアのインターフェースを定義する。
// ハンドラーとワークフローから利用する。
type StoreService interface {
	// Save は分類結果を永続化し、ID付きの記録を返す。
	Save(ctx context.Context, label model.Label, confidence float64, sourceName string) (*model.PredictionRecord, error)

	// Get は指定IDの記録を取得する。
	Get(ctx context.Context, id int64) (*model.PredictionRecord, error)

	// List は挿入順で記録の一覧を取得する。
	List(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error)

	// Update は指定フィールドのみを部分更新し、更新後の記録を返す。
	Update(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error)

	// Delete は指定IDの記録を削除する。
	Delete(ctx context.Context, id int64) error

	// Stats は全記録の集計統計を返す。
	Stats(ctx context.Context) (*model.PredictionStats, error)
}

// Service はStoreServiceの実装。
// 検証・サニタイズをここで行い、永続化はリポジトリに委譲する。
type Service struct {
	repo         repository.PredictionRepository
	sanitizer    security.SourceNameSanitizerService
	logger       *slog.Logger
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.PredictionRepository,
	sanitizer security.SourceNameSanitizerService,
	storeTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		sanitizer:    sanitizer,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// Save は分類結果を検証・サニタイズした上で永続化する。
func (s *Service) Save(ctx context.Context, label model.Label, confidence float64, sourceName string) (*model.PredictionRecord, error) {
	if !label.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("labelは %q または %q である必要があります", model.LabelPositive, model.LabelNegative))
	}
	if confidence < 0.0 || confidence > 1.0 {
		return nil, model.NewValidationError("confidenceは0.0〜1.0の範囲である必要があります")
	}

	clean := s.sanitizer.Sanitize(sourceName)
	if clean == "" {
		return nil, model.NewValidationError("source_nameが空です")
	}

	rec := &model.PredictionRecord{
		Label:      label,
		Confidence: confidence,
		SourceName: clean,
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.Error("予測記録の保存に失敗しました",
			slog.String("source_name", clean),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageError(err.Error())
	}

	s.logger.Info("予測記録を保存しました",
		slog.Int64("record_id", rec.ID),
		slog.String("label", string(rec.Label)),
	)

	return rec, nil
}

// Get は指定IDの記録を取得する。存在しない場合はRECORD_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.PredictionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}
	if rec == nil {
		return nil, model.NewRecordNotFoundError(id)
	}
	return rec, nil
}

// List は挿入順で記録の一覧を取得する。
// limitが0以下の場合はデフォルト値、上限を超える場合は上限値に切り詰める。
// 負のoffsetは0として扱う。
func (s *Service) List(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	records, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}
	return records, nil
}

// Update は指定フィールドのみを部分更新する。
// 更新対象フィールドがない場合は検証エラー、対象が存在しない場合はRECORD_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error) {
	if update == nil || update.IsEmpty() {
		return nil, model.NewValidationError("更新対象のフィールドが指定されていません")
	}
	if update.Label != nil && !update.Label.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("labelは %q または %q である必要があります", model.LabelPositive, model.LabelNegative))
	}
	if update.Confidence != nil && (*update.Confidence < 0.0 || *update.Confidence > 1.0) {
		return nil, model.NewValidationError("confidenceは0.0〜1.0の範囲である必要があります")
	}
	if update.SourceName != nil {
		clean := s.sanitizer.Sanitize(*update.SourceName)
		if clean == "" {
			return nil, model.NewValidationError("source_nameが空です")
		}
		update.SourceName = &clean
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewRecordNotFoundError(id)
		}
		return nil, model.NewStorageError(err.Error())
	}

	s.logger.Info("予測記録を更新しました", slog.Int64("record_id", id))
	return rec, nil
}

// Delete は指定IDの記録を削除する。対象が存在しない場合はRECORD_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewRecordNotFoundError(id)
		}
		return model.NewStorageError(err.Error())
	}

	s.logger.Info("予測記録を削除しました", slog.Int64("record_id", id))
	return nil
}

// Stats は全記録の集計統計を返す。記録が0件の場合は全フィールド0を返す。
func (s *Service) Stats(ctx context.Context) (*model.PredictionStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}

	// ゼロ除算ガード: 0件のときは0%とする
	if stats.Total > 0 {
		stats.PositivePercentage = float64(stats.PositiveCount) / float64(stats.Total) * 100
	}

	return stats, nil
}

// compile-time interface check
var _ StoreService = (*Service)(nil)
