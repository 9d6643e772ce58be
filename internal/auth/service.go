package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/mammogate/internal/model"
	"github.com/hitoshi/mammogate/internal/repository"
)

// シークレット長の制約。上限72バイトはbcryptの入力制限に合わせる。
const (
	minSecretLength = 8
	maxSecretLength = 72
)

// dummySecretHash は存在しない識別子へのログイン試行時に比較する固定ハッシュ。
// 応答時間から識別子の存在有無を推測されないようにする。
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// ServiceConfig はIdentity Verifierの設定。
type ServiceConfig struct {
	JWTSecret     []byte
	TokenLifetime time.Duration // 発行するトークンの有効期間
	StoreTimeout  time.Duration // 資格情報ストアへの呼び出しごとのタイムアウト
}

// Service はIdentity Verifierの実装。
// 資格情報ストアを排他的に所有し、トークンの発行と検証を行う。
type Service struct {
	creds  repository.CredentialRepository
	config ServiceConfig
}

// NewService はIdentity Verifierを生成する。
func NewService(creds repository.CredentialRepository, config ServiceConfig) *Service {
	return &Service{
		creds:  creds,
		config: config,
	}
}

// Register は新しい資格情報を登録する。
// シークレットは一方向ハッシュ化してから保存し、返却もログ出力もしない。
// 識別子が既に使用されている場合はDUPLICATE_IDENTIFIERを返す。
func (s *Service) Register(ctx context.Context, identifier, secret string) error {
	if err := validateIdentifier(identifier); err != nil {
		return err
	}
	if err := validateSecret(secret); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash secret: %w", err)
	}

	cred := &model.Credential{
		ID:         uuid.NewString(),
		Identifier: identifier,
		SecretHash: string(hash),
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentifier) {
			return model.NewDuplicateIdentifierError(identifier)
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// Login は資格情報を検証し、署名付きトークンを発行する。
// bcrypt比較は定数時間で行われる。識別子が存在しない場合もダミーハッシュと
// 比較してから失敗を返し、タイミング差を抑える。
func (s *Service) Login(ctx context.Context, identifier, secret string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	cred, err := s.creds.FindByIdentifier(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("failed to look up credential: %w", err)
	}

	storedHash := dummySecretHash
	if cred != nil {
		storedHash = cred.SecretHash
	}

	compareErr := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret))
	if cred == nil || compareErr != nil {
		return "", model.NewInvalidCredentialsError()
	}

	token, err := GenerateToken(cred.Identifier, s.config.JWTSecret, s.config.TokenLifetime)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return token, nil
}

// Verify はトークンを検証し、主体識別子を返す。
// 署名と期限のみで判定する純関数であり、ストアには問い合わせない。
func (s *Service) Verify(tokenString string) (string, error) {
	subject, err := SubjectFromToken(tokenString, s.config.JWTSecret)
	if err != nil {
		return "", model.NewInvalidTokenError()
	}
	return subject, nil
}

// TokenLifetime は発行するトークンの有効期間を返す。
// ログインレスポンスのexpires_in算出に使用する。
func (s *Service) TokenLifetime() time.Duration {
	return s.config.TokenLifetime
}

// validateIdentifier は識別子の形式を検証する。
func validateIdentifier(identifier string) error {
	if identifier == "" {
		return model.NewValidationError("識別子が空です")
	}
	if !strings.Contains(identifier, "@") {
		return model.NewValidationError("識別子はメールアドレス形式で指定してください")
	}
	return nil
}

// validateSecret はシークレットの長さを検証する。
func validateSecret(secret string) error {
	if len(secret) < minSecretLength {
		return model.NewValidationError(fmt.Sprintf("シークレットは%dバイト以上必要です", minSecretLength))
	}
	if len(secret) > maxSecretLength {
		return model.NewValidationError(fmt.Sprintf("シークレットは%dバイト以下にしてください", maxSecretLength))
	}
	return nil
}
