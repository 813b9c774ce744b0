// Package model defines the core domain types shared across the application.
package model

import (
	"encoding/json"
	"fmt"
)

// reserved JSON keys that map to typed Transaction fields. Everything else
// round-trips through the Extra map.
var reservedTransactionKeys = map[string]struct{}{
	"date":             {},
	"description":      {},
	"withdrawal":       {},
	"deposit":          {},
	"balance":          {},
	"confidence_score": {},
}

// Transaction is a single extracted passbook row. Amounts are in yen.
// At most one of Withdrawal/Deposit is expected to be set for a real
// transaction; this is checked by the gap detector, not enforced here.
type Transaction struct {
	Extra           map[string]any
	Date            string
	Description     string
	Withdrawal      *int64
	Deposit         *int64
	Balance         int64
	ConfidenceScore float64
}

// Validate checks the fields that every transaction must carry.
func (t *Transaction) Validate() error {
	if t.Date == "" {
		return fmt.Errorf("transaction missing date")
	}
	if t.ConfidenceScore < 0 || t.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %f out of range", t.ConfidenceScore)
	}
	if t.Withdrawal != nil && *t.Withdrawal < 0 {
		return fmt.Errorf("withdrawal cannot be negative")
	}
	if t.Deposit != nil && *t.Deposit < 0 {
		return fmt.Errorf("deposit cannot be negative")
	}
	return nil
}

// SetExtra attaches a named attribute outside the canonical fields.
// Reserved names are rejected so callers cannot shadow typed fields.
func (t *Transaction) SetExtra(key string, value any) error {
	if _, reserved := reservedTransactionKeys[key]; reserved {
		return fmt.Errorf("key %q is reserved", key)
	}
	if t.Extra == nil {
		t.Extra = make(map[string]any)
	}
	t.Extra[key] = value
	return nil
}

// MarshalJSON flattens the typed fields and the Extra map into one object.
// Typed fields win on key collisions.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+6)
	for k, v := range t.Extra {
		if _, reserved := reservedTransactionKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["date"] = t.Date
	out["description"] = t.Description
	out["withdrawal"] = t.Withdrawal
	out["deposit"] = t.Deposit
	out["balance"] = t.Balance
	out["confidence_score"] = t.ConfidenceScore
	return json.Marshal(out)
}

// UnmarshalJSON splits an object into typed fields plus the Extra map.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var core struct {
		Date            string   `json:"date"`
		Description     string   `json:"description"`
		Withdrawal      *int64   `json:"withdrawal"`
		Deposit         *int64   `json:"deposit"`
		Balance         int64    `json:"balance"`
		ConfidenceScore *float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal(data, &core); err != nil {
		return fmt.Errorf("failed to parse transaction: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse transaction fields: %w", err)
	}

	t.Date = core.Date
	t.Description = core.Description
	t.Withdrawal = core.Withdrawal
	t.Deposit = core.Deposit
	t.Balance = core.Balance
	t.ConfidenceScore = 0
	if core.ConfidenceScore != nil {
		t.ConfidenceScore = *core.ConfidenceScore
	}

	t.Extra = nil
	for k, v := range raw {
		if _, reserved := reservedTransactionKeys[k]; reserved {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("failed to parse field %q: %w", k, err)
		}
		if t.Extra == nil {
			t.Extra = make(map[string]any)
		}
		t.Extra[k] = val
	}
	return nil
}

// Clone returns a deep copy; Extra values are copied by reference, which is
// safe because they are plain scalars after a JSON round trip.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Withdrawal != nil {
		w := *t.Withdrawal
		out.Withdrawal = &w
	}
	if t.Deposit != nil {
		d := *t.Deposit
		out.Deposit = &d
	}
	if t.Extra != nil {
		out.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
