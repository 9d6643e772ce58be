// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/mammogate/internal/model"
)

// ErrDuplicateIdentifier は識別子の一意制約違反を表す。
var ErrDuplicateIdentifier = errors.New("identifier already registered")

// ErrNotFound は対象行が存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// CredentialRepository は資格情報の永続化インターフェース。
// 資格情報ストアはIdentity Verifierが排他的に所有する。
type CredentialRepository interface {
	// Create は資格情報を作成する。
	// identifierが既に存在する場合はErrDuplicateIdentifierを返す。
	Create(ctx context.Context, cred *model.Credential) error

	// FindByIdentifier は識別子で資格情報を検索する。見つからない場合はnilを返す。
	FindByIdentifier(ctx context.Context, identifier string) (*model.Credential, error)
}

// PredictionRepository は予測記録の永続化インターフェース。
type PredictionRepository interface {
	// Create は予測記録を作成し、ストア採番のIDとcreated_atを書き戻す。
	Create(ctx context.Context, rec *model.PredictionRecord) error

	// FindByID は指定IDの記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.PredictionRecord, error)

	// List は挿入順（ID昇順）で記録を取得する。
	// 呼び出しごとに現在の状態を再クエリする。
	List(ctx context.Context, offset, limit int) ([]*model.PredictionRecord, error)

	// Update は指定フィールドのみを更新し、更新後の記録を返す。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id int64, update *model.PredictionUpdate) (*model.PredictionRecord, error)

	// DeleteByID は指定IDの記録を削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error

	// Stats は全記録から集計統計を導出する。
	Stats(ctx context.Context) (*model.PredictionStats, error)
}
