package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/mammogate/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresCredentialRepo はPostgreSQLを使用した資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Create は資格情報を作成する。
// identifierの一意制約違反はErrDuplicateIdentifierにマッピングする。
func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *model.Credential) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO credentials (id, identifier, secret_hash)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		cred.ID, cred.Identifier, cred.SecretHash,
	).Scan(&cred.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateIdentifier
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	return nil
}

// FindByIdentifier は識別子で資格情報を検索する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identifier, secret_hash, created_at FROM credentials WHERE identifier = $1`,
		identifier,
	).Scan(&cred.ID, &cred.Identifier, &cred.SecretHash, &cred.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential by identifier: %w", err)
	}

	return cred, nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
