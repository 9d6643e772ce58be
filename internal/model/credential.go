package model

import "time"

// Credential は認証主体の資格情報を表す。
// Identifierは不変の一意キー（メールアドレスを想定）。
// SecretHashはbcryptハッシュであり、平文シークレットは保存もログ出力もしない。
type Credential struct {
	ID         string
	Identifier string
	SecretHash string
	CreatedAt  time.Time
}
