package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/mammogate/internal/workflow"
)

// WorkflowServiceInterface はワークフローハンドラーが必要とするサービスインターフェース。
type WorkflowServiceInterface interface {
	ClassifyAndSave(ctx context.Context, payload []byte, contentType, sourceName string) (*workflow.Result, error)
}

// WorkflowHandler は分類保存ワークフローのHTTPハンドラー。
type WorkflowHandler struct {
	service WorkflowServiceInterface
	config  ClassifyHandlerConfig
}

// NewWorkflowHandler はWorkflowHandlerを生成する。
func NewWorkflowHandler(service WorkflowServiceInterface, config ClassifyHandlerConfig) *WorkflowHandler {
	return &WorkflowHandler{
		service: service,
		config:  config,
	}
}

// workflowResponse は分類保存ワークフローのAPIレスポンス。
// 保存成功時はrecord、保存失敗時はsave_errorのみが設定される。
type workflowResponse struct {
	Status         string                 `json:"status"`
	Classification classificationResponse `json:"classification"`
	Record         *recordResponse        `json:"record,omitempty"`
	SaveError      string                 `json:"save_error,omitempty"`
}

// ClassifyAndSave は分類と保存を束ねたワークフローを処理する。
// 認証はBearerミドルウェアで行われるため、ここに到達するのは認証済みリクエストのみ。
// POST /workflow/classify-and-save (multipart/form-data, フィールド名 file)
func (h *WorkflowHandler) ClassifyAndSave(w http.ResponseWriter, r *http.Request) {
	payload, contentType, sourceName, apiErr := readMultipartUpload(w, r, h.config.MaxUploadSize)
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	result, err := h.service.ClassifyAndSave(r.Context(), payload, contentType, sourceName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := workflowResponse{
		Status:         string(result.Status),
		Classification: toClassificationResponse(result.Classification),
		SaveError:      result.SaveError,
	}
	if result.Record != nil {
		rec := toRecordResponse(result.Record)
		resp.Record = &rec
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
