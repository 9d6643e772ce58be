// Package auth はIdentity Verifier（登録・ログイン・トークン検証）を提供する。
//
// トークンはステートレスな署名付きJWT（HS256）であり、有効性は署名と期限のみで
// 決まる。サーバー側に失効リストは存在しないため、発行済みトークンを期限前に
// 無効化することはできない（既知の制限）。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は署名不正・期限切れ・形式不正のトークンを表す。
var ErrInvalidToken = errors.New("invalid token")

// Claims はJWTのクレームを表す。主体識別子は標準のsubクレームに格納する。
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken は主体識別子を含む署名付きトークンを発行する。
// 発行時刻と期限はサーバー時刻から算出する。
func GenerateToken(subject string, secret []byte, lifetime time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// SubjectFromToken はトークンを検証し、主体識別子を返す。
// 署名アルゴリズムはHS256のみを受理する（algすり替え対策）。
// 期限切れ・署名不正・形式不正はいずれもErrInvalidTokenにまとめる。
func SubjectFromToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
