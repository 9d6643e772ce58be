// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/mammogate/internal/model"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// subjectContextKey はリクエストコンテキストに認証済み主体を格納するためのキー。
var subjectContextKey = contextKey("subject")

// subjectHolderContextKey はロギングミドルウェアと共有する主体ホルダーのキー。
var subjectHolderContextKey = contextKey("subjectHolder")

// subjectHolder は内側のBearer認証が確定した主体を外側のロギングへ伝えるための
// 可変ホルダー。context.WithValueで派生したコンテキストは外側から見えないため、
// ロギングミドルウェアがnext実行前にホルダーを配置しておく。
type subjectHolder struct {
	value string
}

// TokenVerifier はトークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// NewBearerAuthMiddleware はAuthorization: Bearerヘッダーのトークンを検証し、
// 認証済み主体をリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーが欠けている場合は401 UNAUTHORIZED、
// トークンが無効または期限切れの場合は401 INVALID_TOKENを返す。
func NewBearerAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			token := strings.TrimPrefix(header, bearerPrefix)
			subject, err := verifier.Verify(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
				return
			}

			if holder, ok := r.Context().Value(subjectHolderContextKey).(*subjectHolder); ok {
				holder.value = subject
			}

			ctx := context.WithValue(r.Context(), subjectContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext はリクエストコンテキストから認証済み主体を取得する。
// Bearer認証ミドルウェアを通過したリクエストでのみ有効。
func SubjectFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	if !ok || subject == "" {
		return "", fmt.Errorf("subject not found in context")
	}
	return subject, nil
}

// ContextWithSubject はコンテキストに認証済み主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}
