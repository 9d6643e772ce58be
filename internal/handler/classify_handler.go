package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hitoshi/mammogate/internal/inference"
	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/security"
)

// ClassifyHandlerConfig は分類ハンドラーの設定。
type ClassifyHandlerConfig struct {
	MaxUploadSize int64         // multipartアップロードの最大サイズ（バイト）
	FetchTimeout  time.Duration // URL取得のタイムアウト
	FetchMaxSize  int64         // URL取得のレスポンスサイズ上限（バイト）
}

// ClassifyHandler は画像分類のHTTPハンドラー。
type ClassifyHandler struct {
	classifier inference.ClassifierService
	guard      security.SSRFGuardService
	config     ClassifyHandlerConfig
}

// NewClassifyHandler はClassifyHandlerを生成する。
func NewClassifyHandler(classifier inference.ClassifierService, guard security.SSRFGuardService, config ClassifyHandlerConfig) *ClassifyHandler {
	return &ClassifyHandler{
		classifier: classifier,
		guard:      guard,
		config:     config,
	}
}

// classifyURLRequest はURL指定分類リクエストのボディ。
type classifyURLRequest struct {
	URL string `json:"url"`
}

// classificationResponse は分類結果のAPIレスポンス。
type classificationResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify はアップロードされた画像の分類を処理する。
// POST /classify (multipart/form-data, フィールド名 file)
func (h *ClassifyHandler) Classify(w http.ResponseWriter, r *http.Request) {
	payload, contentType, sourceName, apiErr := readMultipartUpload(w, r, h.config.MaxUploadSize)
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	result, err := h.classifier.Classify(r.Context(), payload, contentType, sourceName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toClassificationResponse(result))
}

// ClassifyFromURL はURLで指定された画像の取得と分類を処理する。
// ユーザー入力URLからの取得はSSRFガード付きクライアントで行う。
// POST /classify/url {"url": "https://..."}
func (h *ClassifyHandler) ClassifyFromURL(w http.ResponseWriter, r *http.Request) {
	var req classifyURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	if err := h.guard.ValidateURL(req.URL); err != nil {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
		return
	}

	payload, contentType, err := h.fetchImage(req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.classifier.Classify(r.Context(), payload, contentType, sourceNameFromURL(req.URL))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toClassificationResponse(result))
}

// readMultipartUpload はmultipartアップロードからペイロードを読み取る。
// サイズ上限の超過とフィールド欠落はINVALID_PAYLOADとして扱う。
func readMultipartUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (payload []byte, contentType, sourceName string, apiErr *model.APIError) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", model.NewInvalidPayloadError(fmt.Sprintf("fileフィールドの読み取りに失敗: %s", err.Error()))
	}
	defer file.Close()

	payload, err = io.ReadAll(file)
	if err != nil {
		return nil, "", "", model.NewInvalidPayloadError(fmt.Sprintf("ファイルの読み取りに失敗: %s", err.Error()))
	}
	if len(payload) == 0 {
		return nil, "", "", model.NewInvalidPayloadError("ファイルが空です")
	}

	return payload, header.Header.Get("Content-Type"), header.Filename, nil
}

// fetchImage はSSRFガード付きクライアントでURLから画像を取得する。
func (h *ClassifyHandler) fetchImage(rawURL string) ([]byte, string, error) {
	client := h.guard.NewSafeClient(h.config.FetchTimeout)

	resp, err := client.Get(rawURL)
	if err != nil {
		slog.Warn("画像の取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	// サイズ上限+1バイト読み、超過を検出する
	payload, err := io.ReadAll(io.LimitReader(resp.Body, h.config.FetchMaxSize+1))
	if err != nil {
		return nil, "", model.NewFetchFailedError(err.Error())
	}
	if int64(len(payload)) > h.config.FetchMaxSize {
		return nil, "", model.NewFetchFailedError(fmt.Sprintf("レスポンスサイズが上限（%dバイト）を超えています", h.config.FetchMaxSize))
	}
	if len(payload) == 0 {
		return nil, "", model.NewFetchFailedError("レスポンスボディが空です")
	}

	return payload, resp.Header.Get("Content-Type"), nil
}

// sourceNameFromURL はURLのパス末尾からsource_nameを導出する。
func sourceNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "remote_image"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "remote_image"
	}
	return name
}

// toClassificationResponse はmodel.ClassificationからAPIレスポンスに変換する。
func toClassificationResponse(c *model.Classification) classificationResponse {
	return classificationResponse{
		Label:      string(c.Label),
		Confidence: c.Confidence,
	}
}
