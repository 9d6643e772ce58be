package record

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/repository"
	"github.com/hitoshi/mammogate/internal/security"
)

// mockPredictionRepo はテスト用のPredictionRepositoryモック。
type mockPredictionRepo struct {
	createFunc   func(ctx context.Context, rec *model.PredictionRecord) error
	findByIDFunc func(ctx context.Context, id int64) (*model.PredictionRecord, error)
	listFunc     func(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error)
	updateFunc   func(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error)
	deleteFunc   func(ctx context.Context, id int64) error
	statsFunc    func(ctx context.Context) (*model.PredictionStats, error)
}

func (m *mockPredictionRepo) Create(ctx context.Context, rec *model.PredictionRecord) error {
	return m.createFunc(ctx, rec)
}

func (m *mockPredictionRepo) FindByID(ctx context.Context, id int64) (*model.PredictionRecord, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockPredictionRepo) List(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error) {
	return m.listFunc(ctx, offset, limit)
}

func (m *mockPredictionRepo) Update(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error) {
	return m.updateFunc(ctx, id, update)
}

func (m *mockPredictionRepo) DeleteByID(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockPredictionRepo) Stats(ctx context.Context) (*model.PredictionStats, error) {
	return m.statsFunc(ctx)
}

func newTestService(repo repository.PredictionRepository) *Service {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(repo, security.NewSourceNameSanitizer(), 5*time.Second, logger)
}

func assertCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}

func TestSave_Success(t *testing.T) {
	repo := &mockPredictionRepo{
		createFunc: func(ctx context.Context, rec *model.PredictionRecord) error {
			rec.ID = 42
			rec.CreatedAt = time.Now()
			return nil
		},
	}
	svc := newTestService(repo)

	rec, err := svc.Save(context.Background(), model.LabelPositive, 0.93, "scan_001.png")
	if err != nil {
		t.Fatalf("Save() error = %v, want nil", err)
	}
	if rec.ID != 42 {
		t.Errorf("ID = %d, want 42", rec.ID)
	}
	if rec.Label != model.LabelPositive {
		t.Errorf("Label = %q, want %q", rec.Label, model.LabelPositive)
	}
}

func TestSave_ValidationErrors(t *testing.T) {
	svc := newTestService(&mockPredictionRepo{})

	tests := []struct {
		name       string
		label      model.Label
		confidence float64
		sourceName string
	}{
		{"不正なラベル", model.Label("Benign"), 0.5, "scan.png"},
		{"confidenceが負", model.LabelPositive, -0.1, "scan.png"},
		{"confidenceが1超", model.LabelPositive, 1.1, "scan.png"},
		{"source_nameが空", model.LabelPositive, 0.5, ""},
		{"サニタイズ後に空になるsource_name", model.LabelPositive, 0.5, "<b></b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tt.label, tt.confidence, tt.sourceName)
			assertCode(t, err, model.ErrCodeValidationError)
		})
	}
}

// source_nameのHTML断片が保存前に除去されること。
func TestSave_SanitizesSourceName(t *testing.T) {
	var savedSourceName string
	repo := &mockPredictionRepo{
		createFunc: func(ctx context.Context, rec *model.PredictionRecord) error {
			savedSourceName = rec.SourceName
			rec.ID = 1
			return nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Save(context.Background(), model.LabelNegative, 0.5, `<script>alert(1)</script>scan.png`)
	if err != nil {
		t.Fatalf("Save() error = %v, want nil", err)
	}
	if savedSourceName != "scan.png" {
		t.Errorf("saved source_name = %q, want %q", savedSourceName, "scan.png")
	}
}

func TestSave_StorageFailure(t *testing.T) {
	repo := &mockPredictionRepo{
		createFunc: func(ctx context.Context, rec *model.PredictionRecord) error {
			return errors.New("connection refused")
		},
	}
	svc := newTestService(repo)

	_, err := svc.Save(context.Background(), model.LabelPositive, 0.9, "scan.png")
	assertCode(t, err, model.ErrCodeStorageError)
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockPredictionRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.PredictionRecord, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Get(context.Background(), 999)
	assertCode(t, err, model.ErrCodeRecordNotFound)
}

func TestGet_Success(t *testing.T) {
	repo := &mockPredictionRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.PredictionRecord, error) {
			return &model.PredictionRecord{ID: id, Label: model.LabelNegative, Confidence: 0.7, SourceName: "a.png"}, nil
		},
	}
	svc := newTestService(repo)

	rec, err := svc.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if rec.ID != 7 {
		t.Errorf("ID = %d, want 7", rec.ID)
	}
}

// limitの正規化: 0以下はデフォルト、上限超えは切り詰め、負のoffsetは0。
func TestList_NormalizesPagination(t *testing.T) {
	tests := []struct {
		name       string
		offset     int
		limit      int
		wantOffset int
		wantLimit  int
	}{
		{"デフォルトlimit", 0, 0, 0, 100},
		{"負のlimit", 0, -5, 0, 100},
		{"上限超えのlimit", 0, 10000, 0, 500},
		{"負のoffset", -3, 10, 0, 10},
		{"範囲内はそのまま", 20, 50, 20, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOffset, gotLimit int
			repo := &mockPredictionRepo{
				listFunc: func(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error) {
					gotOffset, gotLimit = offset, limit
					return []*model.PredictionRecord{}, nil
				},
			}
			svc := newTestService(repo)

			if _, err := svc.List(context.Background(), tt.offset, tt.limit); err != nil {
				t.Fatalf("List() error = %v, want nil", err)
			}
			if gotOffset != tt.wantOffset || gotLimit != tt.wantLimit {
				t.Errorf("repo.List(%d, %d), want (%d, %d)", gotOffset, gotLimit, tt.wantOffset, tt.wantLimit)
			}
		})
	}
}

func TestUpdate_EmptyUpdateIsValidationError(t *testing.T) {
	svc := newTestService(&mockPredictionRepo{})

	_, err := svc.Update(context.Background(), 1, &model.PredictionUpdate{})
	assertCode(t, err, model.ErrCodeValidationError)
}

func TestUpdate_NotFound(t *testing.T) {
	repo := &mockPredictionRepo{
		updateFunc: func(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error) {
			return nil, repository.ErrNotFound
		},
	}
	svc := newTestService(repo)

	label := model.LabelPositive
	_, err := svc.Update(context.Background(), 999, &model.PredictionUpdate{Label: &label})
	assertCode(t, err, model.ErrCodeRecordNotFound)
}

func TestUpdate_SanitizesSourceName(t *testing.T) {
	var gotUpdate *model.PredictionUpdate
	repo := &mockPredictionRepo{
		updateFunc: func(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error) {
			gotUpdate = update
			return &model.PredictionRecord{ID: id}, nil
		},
	}
	svc := newTestService(repo)

	dirty := `<img src=x onerror=alert(1)>new_name.png`
	_, err := svc.Update(context.Background(), 1, &model.PredictionUpdate{SourceName: &dirty})
	if err != nil {
		t.Fatalf("Update() error = %v, want nil", err)
	}
	if gotUpdate.SourceName == nil || *gotUpdate.SourceName != "new_name.png" {
		t.Errorf("updated source_name = %v, want %q", gotUpdate.SourceName, "new_name.png")
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := &mockPredictionRepo{
		deleteFunc: func(ctx context.Context, id int64) error {
			return repository.ErrNotFound
		},
	}
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), 999)
	assertCode(t, err, model.ErrCodeRecordNotFound)
}

func TestStats_ComputesPositivePercentage(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		positive int64
		negative int64
		want     float64
	}{
		{"0件のときは0", 0, 0, 0, 0},
		{"半数が陽性", 10, 5, 5, 50},
		{"全件陽性", 4, 4, 0, 100},
		{"3分の1が陽性", 3, 1, 2, 100.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPredictionRepo{
				statsFunc: func(ctx context.Context) (*model.PredictionStats, error) {
					return &model.PredictionStats{
						Total:         tt.total,
						PositiveCount: tt.positive,
						NegativeCount: tt.negative,
					}, nil
				},
			}
			svc := newTestService(repo)

			stats, err := svc.Stats(context.Background())
			if err != nil {
				t.Fatalf("Stats() error = %v, want nil", err)
			}
			if stats.PositivePercentage != tt.want {
				t.Errorf("PositivePercentage = %v, want %v", stats.PositivePercentage, tt.want)
			}
		})
	}
}
