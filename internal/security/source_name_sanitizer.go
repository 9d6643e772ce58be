// SourceNameSanitizerService は予測記録のsource_nameをサニタイズし、
// 外部ダッシュボードでの表示時にXSSを引き起こさないようにする。
// source_nameはアップロード元のファイル名に由来するユーザー制御値であり、
// HTMLとして解釈されうる断片をすべて除去してから保存する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SourceNameSanitizerService はsource_nameのサニタイズ機能のインターフェースを定義する。
// 記録の保存前および更新前に使用される。
type SourceNameSanitizerService interface {
	// Sanitize はHTMLタグ・属性をすべて除去したプレーンテキストを返す。
	// 前後の空白も取り除く。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// sourceNameSanitizer はSourceNameSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type sourceNameSanitizer struct {
	policy *bluemonday.Policy
}

// NewSourceNameSanitizer はSourceNameSanitizerServiceの新しいインスタンスを生成する。
// source_nameは表示用のプレーンな名前であり、許可すべきHTMLは存在しないため、
// 許可リストが空のStrictPolicyを使用する。
func NewSourceNameSanitizer() *sourceNameSanitizer {
	return &sourceNameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグ・属性をすべて除去したプレーンテキストを返す。
func (s *sourceNameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
