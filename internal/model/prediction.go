package model

import "time"

// Label は分類結果の公開ラベルを表す。
// 下流の集計処理が認識するのはこの2値のみ。
type Label string

const (
	// LabelPositive は陽性（がん検出）を示す。
	LabelPositive Label = "Positive"
	// LabelNegative は陰性を示す。
	LabelNegative Label = "Negative"
)

// IsValid はラベルが公開ラベル集合に含まれるかを返す。
func (l Label) IsValid() bool {
	return l == LabelPositive || l == LabelNegative
}

// PredictionRecord は永続化された分類結果を表す。
// IDはストアが採番する単調増加値、CreatedAtはサーバー側で付与される。
// 認証情報への外部キーは意図的に持たない（記録はユーザー単位にスコープしない）。
type PredictionRecord struct {
	ID         int64
	Label      Label
	Confidence float64
	SourceName string
	CreatedAt  time.Time
}

// Classification は推論バックエンドから返された分類結果を表す。
// 永続化前の一次成果物であり、記録IDを持たない。
type Classification struct {
	Label      Label
	Confidence float64
}

// PredictionUpdate は予測記録の部分更新を表す。
// nilのフィールドは変更しない。
type PredictionUpdate struct {
	Label      *Label
	Confidence *float64
	SourceName *string
}

// IsEmpty は更新対象フィールドが1つもないかを返す。
func (u *PredictionUpdate) IsEmpty() bool {
	return u.Label == nil && u.Confidence == nil && u.SourceName == nil
}

// PredictionStats は予測記録の集計統計を表す。
// クエリ時に全記録から導出される（増分維持はしない）。
type PredictionStats struct {
	Total              int64
	PositiveCount      int64
	NegativeCount      int64
	PositivePercentage float64 // 0〜100。Totalが0のときは0（ゼロ除算ガード）
}
