package learning

import (
	"github.com/ktsuji/passbook-flow/internal/model"
)

// balanceTolerance absorbs rounding noise in scanned balances.
const balanceTolerance = 1

// BalanceGap flags a row whose balance disagrees with the running balance
// implied by the preceding row. A diagnostic signal only — detection never
// blocks the pipeline.
type BalanceGap struct {
	Position   int   `json:"position"`
	Expected   int64 `json:"expected"`
	Actual     int64 `json:"actual"`
	Difference int64 `json:"difference"`
}

// CheckBalanceConsistency walks a transaction sequence and reports every row
// whose balance deviates from prev_balance - withdrawal + deposit by more
// than the tolerance.
func CheckBalanceConsistency(transactions []model.Transaction) []BalanceGap {
	var gaps []BalanceGap

	for i := 1; i < len(transactions); i++ {
		expected := transactions[i-1].Balance - amountOf(transactions[i].Withdrawal) + amountOf(transactions[i].Deposit)
		actual := transactions[i].Balance

		diff := expected - actual
		if diff > balanceTolerance || diff < -balanceTolerance {
			gaps = append(gaps, BalanceGap{
				Position:   i,
				Expected:   expected,
				Actual:     actual,
				Difference: diff,
			})
		}
	}

	return gaps
}

func amountOf(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
