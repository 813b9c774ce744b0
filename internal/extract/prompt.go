package extract

import (
	"encoding/json"
	"fmt"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// extractionPrompt instructs exhaustive row extraction with half-width
// katakana canonicalized at the source.
const extractionPrompt = `銀行通帳の画像から「すべての」取引データを抽出してください。
画像に表示されているすべての行を確認し、一つも漏らさずに抽出してください。

以下のJSON形式で返してください：

{
    "transactions": [
        {
            "date": "MM/DD",
            "description": "取引内容",
            "withdrawal": null,
            "deposit": 金額,
            "balance": 残高
        }
    ],
    "confidence": 0.95
}

重要な指示：
- 画像に表示されているすべての取引行を抽出してください
- 見切れている部分や不明瞭な部分も可能な限り読み取ってください
- 取引が10件以上ある場合も、すべて抽出してください
- 金額は数値のみ（カンマなし）
- 出金はwithdrawal、入金はdepositに設定
- 日本の銀行通帳フォーマットを理解して処理
- 必ずJSON形式のみで応答し、追加のテキストは含めないでください

文字認識の注意点：
- 不明瞭な文字は文脈から推測してください
- 半角カタカナ（ｱｲｳｴｵ、ﾊﾟ、ﾋﾞ、ﾌﾞ等）は全角カタカナ（アイウエオ、パ、ビ、ブ等）に変換してください
- 一般的な銀行取引用語を優先してください
- 「クレジットカード」「ATM」「振込」「振込手数料」「総合振込」等の一般的な用語
- 変換例：ｱｿｼｴｰｼｮﾝ→アソシエーション、ﾓﾉﾀﾛｰ→モノタロー、ﾗｲﾌ→ライフ、ｸﾚｼﾞｯﾄ→クレジット`

// verificationPrompt embeds a prior candidate as a numeric-verification task.
func verificationPrompt(prior model.ExtractionCandidate) string {
	payload, err := json.MarshalIndent(candidatePayload{
		Transactions: prior.Transactions,
		Confidence:   prior.Confidence,
	}, "", "  ")
	if err != nil {
		payload = []byte("{}")
	}

	return fmt.Sprintf(`先行モデルが抽出したデータの数値精度を検証してください：
%s

以下を確認：
- 金額の正確な読み取り
- 残高計算の検証
- 日付の正確性

検証済みの取引データを同じJSON形式（transactions / confidence）で返してください。`, payload)
}
