package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/ktsuji/passbook-flow/internal/common"
)

func TestFieldSnapshotRoundTrip(t *testing.T) {
	txn := Transaction{
		Date:        "01/16",
		Description: "ﾓﾉﾀﾛｰ",
		Withdrawal:  int64p(12500),
		Balance:     1237500,
	}
	_ = txn.SetExtra("vendor", "モノタロー")

	snap, err := NewFieldSnapshot(txn)
	if err != nil {
		t.Fatalf("NewFieldSnapshot failed: %v", err)
	}
	if desc, ok := snap.Description(); !ok || desc != "ﾓﾉﾀﾛｰ" {
		t.Fatalf("snapshot description = %q, ok=%v", desc, ok)
	}
	if !snap.Has("withdrawal") {
		t.Fatal("snapshot should carry withdrawal")
	}

	body, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(body, `"v":1`) {
		t.Errorf("encoded snapshot missing version tag: %s", body)
	}

	decoded, err := DecodeSnapshot(body)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if desc, _ := decoded.Description(); desc != "ﾓﾉﾀﾛｰ" {
		t.Errorf("decoded description = %q", desc)
	}
	if decoded.Fields["vendor"] != "モノタロー" {
		t.Errorf("decoded extra field lost: %v", decoded.Fields)
	}
}

func TestDecodeSnapshotRejectsMalformedBodies(t *testing.T) {
	bodies := []string{
		"",
		"not json",
		`{"fields":{"description":"x"}}`,         // missing version
		`{"v":1}`,                                // missing fields
		`{'description': 'python repr of dict'}`, // legacy stringified record
	}
	for _, body := range bodies {
		_, err := DecodeSnapshot(body)
		if err == nil {
			t.Errorf("DecodeSnapshot(%q) should fail", body)
			continue
		}
		if !errors.Is(err, common.ErrPatternParse) {
			t.Errorf("DecodeSnapshot(%q) error = %v, want ErrPatternParse", body, err)
		}
	}
}

func TestCorrectionRecordValidate(t *testing.T) {
	snap := SnapshotFromFields(map[string]any{"description": "ｾﾌﾞﾝ"})

	valid := CorrectionRecord{
		FileRef:   "file-1",
		Type:      CorrectionCellEdit,
		Original:  snap,
		Corrected: SnapshotFromFields(map[string]any{"description": "セブン"}),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	missing := valid
	missing.FileRef = ""
	if err := missing.Validate(); err == nil {
		t.Error("record without file ref accepted")
	}

	badType := valid
	badType.Type = CorrectionType("repaint")
	if err := badType.Validate(); err == nil {
		t.Error("record with unknown type accepted")
	}
}

func TestCorrectionTypeValid(t *testing.T) {
	for _, ct := range []CorrectionType{CorrectionCellEdit, CorrectionRowAdd, CorrectionRowDelete, CorrectionRowMerge} {
		if !ct.Valid() {
			t.Errorf("%q should be valid", ct)
		}
	}
	if CorrectionType("").Valid() {
		t.Error("empty correction type should be invalid")
	}
}
