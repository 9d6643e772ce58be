// Package workflow は分類と保存を束ねたワークフローを提供する。
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/mammogate/internal/inference"
	"github.com/hitoshi/mammogate/internal/metrics"
	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/record"
)

// Status はワークフローの結果種別を表す。
type Status string

const (
	// StatusClassifiedAndSaved は分類・保存ともに成功したことを示す。
	StatusClassifiedAndSaved Status = "classified_and_saved"
	// StatusClassifiedSaveFailed は分類は成功したが保存に失敗したことを示す。
	// 分類結果は呼び出し元に返される。
	StatusClassifiedSaveFailed Status = "classified_save_failed"
)

// Result は分類保存ワークフローの結果を表す。
// 分類に失敗した場合はResultは返らず、エラーのみが返る。
type Result struct {
	Status         Status
	Classification *model.Classification
	// Record は保存成功時のみ非nil。
	Record *model.PredictionRecord
	// SaveError は保存失敗時の診断メッセージ。保存成功時は空。
	SaveError string
}

// WorkflowService は分類保存ワークフローのインターフェースを定義する。
type WorkflowService interface {
	// ClassifyAndSave はペイロードを分類し、結果を永続化する。
	// 保存失敗は致命的エラーとせず、分類結果とともに失敗を報告する。
	ClassifyAndSave(ctx context.Context, payload []byte, contentType, sourceName string) (*Result, error)
}

// Service はWorkflowServiceの実装。
// 保証は「分類が成功すれば結果は必ず呼び出し元に届く」こと。
// 保存のリトライや補償処理は行わない。
type Service struct {
	classifier inference.ClassifierService
	store      record.StoreService
	collector  metrics.MetricsCollector
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	classifier inference.ClassifierService,
	store record.StoreService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		classifier: classifier,
		store:      store,
		collector:  collector,
		logger:     logger,
	}
}

// ClassifyAndSave はペイロードを分類し、結果を永続化する。
//
// 分類に失敗した場合はエラーを返す（保存は試みない）。
// 分類に成功して保存に失敗した場合は、StatusClassifiedSaveFailedの
// Resultを返す。分類結果が失われることはない。
func (s *Service) ClassifyAndSave(ctx context.Context, payload []byte, contentType, sourceName string) (*Result, error) {
	start := time.Now()

	classification, err := s.classifier.Classify(ctx, payload, contentType, sourceName)
	s.collector.RecordInferenceLatency(time.Since(start))
	if err != nil {
		s.collector.RecordClassifyFailure(failureReason(err))
		return nil, err
	}
	s.collector.RecordClassifySuccess(string(classification.Label))

	rec, err := s.store.Save(ctx, classification.Label, classification.Confidence, sourceName)
	if err != nil {
		s.collector.RecordWorkflowSaveFailure()
		s.logger.Warn("分類結果の保存に失敗しました",
			slog.String("source_name", sourceName),
			slog.String("label", string(classification.Label)),
			slog.String("error", err.Error()),
		)
		return &Result{
			Status:         StatusClassifiedSaveFailed,
			Classification: classification,
			SaveError:      err.Error(),
		}, nil
	}
	s.collector.RecordRecordsSaved()

	return &Result{
		Status:         StatusClassifiedAndSaved,
		Classification: classification,
		Record:         rec,
	}, nil
}

// failureReason は分類失敗のメトリクス用原因ラベルを導出する。
func failureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeUpstreamTimeout:
			return "timeout"
		case model.ErrCodeInvalidPayload:
			return "invalid_payload"
		}
	}
	return "upstream_error"
}

// compile-time interface check
var _ WorkflowService = (*Service)(nil)
