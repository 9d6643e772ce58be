// Package inference は推論バックエンドへのクライアントを提供する。
// ペイロードは不透明なバイト列として扱い、画像としての妥当性検証は
// バックエンド側の責務とする。リトライは行わない（呼び出し元の判断に委ねる）。
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/hitoshi/mammogate/internal/model"
)

// predictPath は推論バックエンドの分類エンドポイントのパス。
const predictPath = "/inference/predict"

// maxResponseSize は推論バックエンドのレスポンスボディ読み取り上限。
// 分類結果のJSONは小さいため1MiBで十分。
const maxResponseSize = 1 << 20

// maxDiagnosticLength はエラーメッセージに含める診断メッセージの上限長。
const maxDiagnosticLength = 512

// ClassifierService は分類操作のインターフェースを定義する。
// ワークフローとハンドラーから利用する。
type ClassifierService interface {
	// Classify はバイナリペイロードを分類し、公開ラベルと信頼度を返す。
	Classify(ctx context.Context, payload []byte, contentType, sourceName string) (*model.Classification, error)
}

// Client は推論バックエンドのHTTPクライアント。
// バックエンドは運用者が設定する内部サービスであり、呼び出しごとの
// タイムアウトが唯一のキャンセル機構となる。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは推論バックエンドのベースURL（例: "http://inference-service:8001"）。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		timeout:    timeout,
	}
}

// predictResponse は推論バックエンドの分類レスポンス。
type predictResponse struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// backendError はバックエンドのエラーレスポンス（{"detail": "..."}形式）。
type backendError struct {
	Detail string `json:"detail"`
}

// Classify はペイロードをmultipartでバックエンドに送信し、分類結果を返す。
//
// エラーの対応:
//   - タイムアウト → UPSTREAM_TIMEOUT
//   - バックエンド4xx → INVALID_PAYLOAD（診断メッセージ付き）
//   - バックエンド5xx・不正レスポンス → UPSTREAM_ERROR（診断メッセージ付き）
func (c *Client) Classify(ctx context.Context, payload []byte, contentType, sourceName string) (*model.Classification, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, formContentType, err := buildMultipartBody(payload, contentType, sourceName)
	if err != nil {
		return nil, fmt.Errorf("multipartボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("推論バックエンドがタイムアウトしました",
				slog.String("source_name", sourceName),
				slog.Duration("timeout", c.timeout),
			)
			return nil, model.NewUpstreamTimeoutError()
		}
		c.logger.Error("推論バックエンドへのリクエストに失敗しました",
			slog.String("source_name", sourceName),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, model.NewUpstreamError(fmt.Sprintf("レスポンスの読み取りに失敗: %s", err.Error()))
	}

	if resp.StatusCode != http.StatusOK {
		detail := extractDiagnostic(respBody, resp.StatusCode)
		c.logger.Warn("推論バックエンドがエラーステータスを返しました",
			slog.String("source_name", sourceName),
			slog.Int("http_status", resp.StatusCode),
			slog.String("detail", detail),
		)
		// 4xxはペイロード拒否、それ以外はバックエンド異常として扱う
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, model.NewInvalidPayloadError(detail)
		}
		return nil, model.NewUpstreamError(detail)
	}

	var result predictResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, model.NewUpstreamError(fmt.Sprintf("レスポンスJSONのパースに失敗: %s", err.Error()))
	}

	classification, err := toClassification(result)
	if err != nil {
		return nil, err
	}

	c.logger.Info("分類が完了しました",
		slog.String("source_name", sourceName),
		slog.String("label", string(classification.Label)),
		slog.Float64("confidence", classification.Confidence),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return classification, nil
}

// toClassification はバックエンドの生レスポンスを公開ラベルに変換する。
// バックエンドの生クラス名 "cancer"（大文字小文字を問わない）は公開ラベル
// "Positive" にマッピングする。それ以外の値は公開ラベル集合そのものである
// ことを要求し、未知のクラス名は不正レスポンスとして扱う。
func toClassification(resp predictResponse) (*model.Classification, error) {
	label := model.Label(resp.Prediction)
	if strings.EqualFold(resp.Prediction, "cancer") {
		label = model.LabelPositive
	}
	if !label.IsValid() {
		return nil, model.NewUpstreamError(fmt.Sprintf("未知の分類クラス: %q", resp.Prediction))
	}

	if resp.Confidence < 0.0 || resp.Confidence > 1.0 {
		return nil, model.NewUpstreamError(fmt.Sprintf("信頼度が範囲外: %v", resp.Confidence))
	}

	return &model.Classification{
		Label:      label,
		Confidence: resp.Confidence,
	}, nil
}

// buildMultipartBody はフィールド名fileのmultipart/form-dataボディを構築する。
func buildMultipartBody(payload []byte, contentType, sourceName string) (*bytes.Buffer, string, error) {
	if sourceName == "" {
		sourceName = "upload"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, sourceName))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// isTimeout はトランスポートエラーがタイムアウト由来かを判定する。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// extractDiagnostic はバックエンドのエラーボディから診断メッセージを抽出する。
// {"detail": "..."}形式を優先し、それ以外は生ボディを切り詰めて使用する。
func extractDiagnostic(body []byte, statusCode int) string {
	var be backendError
	if err := json.Unmarshal(body, &be); err == nil && be.Detail != "" {
		return truncate(be.Detail, maxDiagnosticLength)
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return fmt.Sprintf("HTTPステータス %d", statusCode)
	}
	return truncate(raw, maxDiagnosticLength)
}

// truncate は文字列を最大長で切り詰める。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// compile-time interface check
var _ ClassifierService = (*Client)(nil)
