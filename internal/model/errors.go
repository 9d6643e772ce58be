// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateIdentifier = "DUPLICATE_IDENTIFIER"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	ErrCodeInvalidPayload      = "INVALID_PAYLOAD"
	ErrCodeValidationError     = "VALIDATION_ERROR"
	ErrCodeRecordNotFound      = "RECORD_NOT_FOUND"
	ErrCodeStorageError        = "STORAGE_ERROR"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
	ErrCodeFetchFailed         = "FETCH_FAILED"
)

// NewDuplicateIdentifierError は識別子重複エラーを生成する。
func NewDuplicateIdentifierError(identifier string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentifier,
		Message:  fmt.Sprintf("この識別子は既に登録されています: %s", identifier),
		Category: "auth",
		Action:   "別のメールアドレスで登録するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// 識別子の存在有無を漏らさないよう、メッセージは常に同一とする。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "識別子またはシークレットが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidTokenError は無効トークンエラーを生成する。
// 署名不正と期限切れは区別しない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてトークンを取得してください。",
	}
}

// NewUnauthorizedError は認証必須エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "Authorization: Bearer ヘッダーにトークンを指定してください。",
	}
}

// NewUpstreamError は推論バックエンド異常エラーを生成する。
// detailにはバックエンドの診断メッセージをそのまま含める。
func NewUpstreamError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  fmt.Sprintf("推論サービスがエラーを返しました: %s", detail),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamTimeoutError は推論バックエンドのタイムアウトエラーを生成する。
func NewUpstreamTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamTimeout,
		Message:  "推論サービスが時間内に応答しませんでした。",
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidPayloadError はペイロード不正エラーを生成する。
func NewInvalidPayloadError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("画像ペイロードが受理されませんでした: %s", detail),
		Category: "validation",
		Action:   "対応形式の画像ファイルをアップロードしてください。",
	}
}

// NewValidationError はフィールド検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationError,
		Message:  fmt.Sprintf("入力値が不正です: %s", detail),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewRecordNotFoundError は記録未検出エラーを生成する。
func NewRecordNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された予測記録が見つかりません: %d", id),
		Category: "storage",
		Action:   "記録IDを確認してください。",
	}
}

// NewStorageError は永続化失敗エラーを生成する。
// detailにはストアの診断メッセージをそのまま含める。
func NewStorageError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageError,
		Message:  fmt.Sprintf("記録ストアへのアクセスに失敗しました: %s", detail),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は画像取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
