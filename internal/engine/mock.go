package engine

import (
	"github.com/ktsuji/passbook-flow/internal/model"
)

// mockResult returns the fixed demonstration dataset used when no provider
// credential is configured, and as the terminal fallback when a strategy
// fails unrecoverably. Extraction always ends with some result.
func mockResult() *model.ProcessingResult {
	amount := func(v int64) *int64 { return &v }

	rows := []model.Transaction{
		{
			Date:            "01/15",
			Description:     "給与振込",
			Deposit:         amount(350000),
			Balance:         1250000,
			ConfidenceScore: 0.95,
			Extra: map[string]any{
				"bank_code": "0009",
				"branch":    "本店",
				"category":  "給与",
			},
		},
		{
			Date:            "01/16",
			Description:     "電気代",
			Withdrawal:      amount(12500),
			Balance:         1237500,
			ConfidenceScore: 0.92,
			Extra: map[string]any{
				"bank_code": "0009",
				"branch":    "本店",
				"category":  "公共料金",
				"vendor":    "東京電力",
			},
		},
		{
			Date:            "01/17",
			Description:     "ATM出金",
			Withdrawal:      amount(30000),
			Balance:         1207500,
			ConfidenceScore: 0.88,
			Extra: map[string]any{
				"bank_code":    "0009",
				"branch":       "本店",
				"category":     "現金引出",
				"atm_location": "渋谷駅前",
			},
		},
		{
			Date:            "01/18",
			Description:     "スーパーマーケット",
			Withdrawal:      amount(8200),
			Balance:         1199300,
			ConfidenceScore: 0.85,
			Extra: map[string]any{
				"bank_code":      "0009",
				"branch":         "本店",
				"category":       "食料品",
				"vendor":         "イオン",
				"payment_method": "デビットカード",
			},
		},
	}

	confA := 0.90
	return &model.ProcessingResult{
		Transactions:     rows,
		ConfidenceScore:  0.90,
		Strategy:         model.StrategyMockData,
		ModelAConfidence: &confA,
	}
}
