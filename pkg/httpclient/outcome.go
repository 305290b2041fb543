package httpclient

import (
	"errors"
	"net/http"
)

// Outcome はクロスサービス検証の3値の結果を表す。
// 「前提条件が偽」と「判定不能」はクライアントに返すステータスコードが
// 異なるため（403/404と502）、1つのエラークラスに潰してはならない。
type Outcome int

const (
	// OutcomeConfirmed は前提条件が確認できたことを表す。
	OutcomeConfirmed Outcome = iota
	// OutcomeRejected はリモートが404を返し、前提条件が偽であることを表す。
	OutcomeRejected
	// OutcomeIndeterminate はリモートに到達できない・タイムアウト・5xx等で
	// 前提条件を判定できないことを表す。
	OutcomeIndeterminate
)

// String はOutcomeのログ用文字列表現を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Classify はクロスサービス呼び出しのエラーを3値の結果に分類する。
// nil → confirmed、リモートの404 → rejected、それ以外（接続失敗・
// タイムアウト・5xx・予期しないステータス）→ indeterminate。
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeConfirmed
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return OutcomeRejected
	}
	return OutcomeIndeterminate
}
