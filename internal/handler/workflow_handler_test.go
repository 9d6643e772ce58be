package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/workflow"
)

// mockWorkflowService はテスト用のWorkflowServiceInterfaceモック。
type mockWorkflowService struct {
	classifyAndSaveFunc func(ctx context.Context, payload []byte, contentType, sourceName string) (*workflow.Result, error)
}

func (m *mockWorkflowService) ClassifyAndSave(ctx context.Context, payload []byte, contentType, sourceName string) (*workflow.Result, error) {
	return m.classifyAndSaveFunc(ctx, payload, contentType, sourceName)
}

func TestClassifyAndSave_ReturnsRecord(t *testing.T) {
	service := &mockWorkflowService{
		classifyAndSaveFunc: func(ctx context.Context, payload []byte, contentType, sourceName string) (*workflow.Result, error) {
			return &workflow.Result{
				Status:         workflow.StatusClassifiedAndSaved,
				Classification: &model.Classification{Label: model.LabelPositive, Confidence: 0.88},
				Record:         sampleRecord(5),
			}, nil
		},
	}
	h := NewWorkflowHandler(service, testClassifyConfig())

	req := newMultipartRequest(t, "/workflow/classify-and-save", "scan.png", []byte("img"))
	w := httptest.NewRecorder()

	h.ClassifyAndSave(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body workflowResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Status != string(workflow.StatusClassifiedAndSaved) {
		t.Errorf("status = %q, want %q", body.Status, workflow.StatusClassifiedAndSaved)
	}
	if body.Record == nil || body.Record.ID != 5 {
		t.Errorf("record = %+v, want ID 5", body.Record)
	}
	if body.SaveError != "" {
		t.Errorf("save_error = %q, want empty", body.SaveError)
	}
}

// 保存失敗時も分類結果がsave_errorとともに返ること。
func TestClassifyAndSave_SaveFailureReturnsClassification(t *testing.T) {
	service := &mockWorkflowService{
		classifyAndSaveFunc: func(ctx context.Context, payload []byte, contentType, sourceName string) (*workflow.Result, error) {
			return &workflow.Result{
				Status:         workflow.StatusClassifiedSaveFailed,
				Classification: &model.Classification{Label: model.LabelNegative, Confidence: 0.7},
				SaveError:      "記録ストアへのアクセスに失敗しました",
			}, nil
		},
	}
	h := NewWorkflowHandler(service, testClassifyConfig())

	req := newMultipartRequest(t, "/workflow/classify-and-save", "scan.png", []byte("img"))
	w := httptest.NewRecorder()

	h.ClassifyAndSave(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body workflowResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Status != string(workflow.StatusClassifiedSaveFailed) {
		t.Errorf("status = %q, want %q", body.Status, workflow.StatusClassifiedSaveFailed)
	}
	if body.Classification.Label != "Negative" {
		t.Errorf("label = %q, want Negative", body.Classification.Label)
	}
	if body.Record != nil {
		t.Errorf("record = %+v, want nil", body.Record)
	}
	if body.SaveError == "" {
		t.Error("save_error is empty, want diagnostic message")
	}
}

func TestClassifyAndSave_ClassifyFailureIsMapped(t *testing.T) {
	service := &mockWorkflowService{
		classifyAndSaveFunc: func(ctx context.Context, payload []byte, contentType, sourceName string) (*workflow.Result, error) {
			return nil, model.NewUpstreamError("model not loaded")
		},
	}
	h := NewWorkflowHandler(service, testClassifyConfig())

	req := newMultipartRequest(t, "/workflow/classify-and-save", "scan.png", []byte("img"))
	w := httptest.NewRecorder()

	h.ClassifyAndSave(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeUpstreamError {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUpstreamError)
	}
}

func TestClassifyAndSave_MissingFileIs422(t *testing.T) {
	h := NewWorkflowHandler(&mockWorkflowService{}, testClassifyConfig())

	req := httptest.NewRequest(http.MethodPost, "/workflow/classify-and-save", nil)
	w := httptest.NewRecorder()

	h.ClassifyAndSave(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}
