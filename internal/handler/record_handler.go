package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/record"
)

// RecordServiceInterface は記録ハンドラーが必要とするサービスインターフェース。
type RecordServiceInterface interface {
	Save(ctx context.Context, label model.Label, confidence float64, sourceName string) (*model.PredictionRecord, error)
	Get(ctx context.Context, id int64) (*model.PredictionRecord, error)
	List(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error)
	Update(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.PredictionStats, error)
}

// RecordHandler は予測記録管理のHTTPハンドラー。
type RecordHandler struct {
	service RecordServiceInterface
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(service RecordServiceInterface) *RecordHandler {
	return &RecordHandler{service: service}
}

// createRecordRequest は記録作成リクエストのボディ。
type createRecordRequest struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	SourceName string  `json:"source_name"`
}

// updateRecordRequest は記録の部分更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateRecordRequest struct {
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
	SourceName *string  `json:"source_name"`
}

// recordResponse は予測記録のAPIレスポンス。
type recordResponse struct {
	ID         int64   `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	SourceName string  `json:"source_name"`
	CreatedAt  string  `json:"created_at"`
}

// statsResponse は集計統計のAPIレスポンス。
type statsResponse struct {
	Total              int64   `json:"total"`
	PositiveCount      int64   `json:"positive_count"`
	NegativeCount      int64   `json:"negative_count"`
	PositivePercentage float64 `json:"positive_percentage"`
}

// CreateRecord は記録の作成を処理する。
// POST /records
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	rec, err := h.service.Save(r.Context(), model.Label(req.Label), req.Confidence, req.SourceName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toRecordResponse(rec))
}

// GetRecord は記録の取得を処理する。
// GET /records/{id}
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, apiErr := recordIDFromRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecordResponse(rec))
}

// ListRecords は記録一覧の取得を処理する。
// GET /records?offset=0&limit=100
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	records, err := h.service.List(r.Context(), offset, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, toRecordResponse(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]recordResponse{
		"records": responses,
	})
}

// UpdateRecord は記録の部分更新を処理する。
// PUT /records/{id}
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, apiErr := recordIDFromRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	update := &model.PredictionUpdate{
		Confidence: req.Confidence,
		SourceName: req.SourceName,
	}
	if req.Label != nil {
		label := model.Label(*req.Label)
		update.Label = &label
	}

	rec, err := h.service.Update(r.Context(), id, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecordResponse(rec))
}

// DeleteRecord は記録の削除を処理する。
// DELETE /records/{id}
func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, apiErr := recordIDFromRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats は集計統計の取得を処理する。
// GET /records/stats/summary
func (h *RecordHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Total:              stats.Total,
		PositiveCount:      stats.PositiveCount,
		NegativeCount:      stats.NegativeCount,
		PositivePercentage: stats.PositivePercentage,
	})
}

// --- ヘルパー関数 ---

// recordIDFromRequest はURLパラメータから記録IDを取得する。
func recordIDFromRequest(r *http.Request) (int64, *model.APIError) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("記録IDは正の整数で指定してください")
	}
	return id, nil
}

// queryInt はクエリパラメータを整数として取得する。不正値はフォールバックを返す。
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// toRecordResponse はmodel.PredictionRecordからAPIレスポンスに変換する。
func toRecordResponse(rec *model.PredictionRecord) recordResponse {
	return recordResponse{
		ID:         rec.ID,
		Label:      string(rec.Label),
		Confidence: rec.Confidence,
		SourceName: rec.SourceName,
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeDuplicateIdentifier:
		return http.StatusBadRequest
	case model.ErrCodeValidationError, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidToken, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeRecordNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidPayload:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUpstreamError, model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case model.ErrCodeStorageError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// compile-time interface check
var _ RecordServiceInterface = (*record.Service)(nil)
