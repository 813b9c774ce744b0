package learning

import (
	"context"
	"testing"

	"github.com/ktsuji/passbook-flow/internal/model"
)

func TestDetectColumnsFromText(t *testing.T) {
	mapper := NewColumnMapper(createTestStore(t))

	text := "日付  摘要  お引出し  お預入れ  残高"
	detected := mapper.DetectColumnsFromText(text, "mizuho")

	wantStandard := []string{"date", "description", "withdrawal", "deposit", "balance"}
	if len(detected) != len(wantStandard) {
		t.Fatalf("detected %d columns, want %d", len(detected), len(wantStandard))
	}
	for i, want := range wantStandard {
		if detected[i].StandardName != want {
			t.Errorf("column %d = %q, want %q", i, detected[i].StandardName, want)
		}
		if detected[i].Position != i+1 {
			t.Errorf("column %d position = %d, want %d", i, detected[i].Position, i+1)
		}
	}
	if detected[0].DataType != model.ColumnDate {
		t.Errorf("date column type = %q", detected[0].DataType)
	}
	if detected[2].DataType != model.ColumnCurrency {
		t.Errorf("withdrawal column type = %q", detected[2].DataType)
	}
	if detected[1].DataType != model.ColumnText {
		t.Errorf("description column type = %q", detected[1].DataType)
	}
}

func TestDetectColumnsFromTextDeclaredOrder(t *testing.T) {
	mapper := NewColumnMapper(createTestStore(t))

	// Text order does not matter; the scanning dictionary's order does.
	detected := mapper.DetectColumnsFromText("残高 取引日", "")
	if len(detected) != 2 {
		t.Fatalf("detected %d columns, want 2", len(detected))
	}
	if detected[0].StandardName != "date" || detected[1].StandardName != "balance" {
		t.Errorf("order = %q, %q; want date then balance", detected[0].StandardName, detected[1].StandardName)
	}
}

func TestDetectColumnsFromTextNoHeaders(t *testing.T) {
	mapper := NewColumnMapper(createTestStore(t))

	if detected := mapper.DetectColumnsFromText("plain body text", ""); len(detected) != 0 {
		t.Errorf("detected %d columns in headerless text", len(detected))
	}
}

func TestSaveMappingDropsUnnamedRows(t *testing.T) {
	store := createTestStore(t)
	mapper := NewColumnMapper(store)
	ctx := context.Background()

	mappings := []model.ColumnMapping{
		{OriginalName: "日付", StandardName: "date", Position: 0},
		{OriginalName: "", StandardName: "description", Position: 1},
		{OriginalName: "残高", StandardName: "", Position: 2},
		{OriginalName: "摘要", StandardName: "description", Position: 3},
	}
	if err := mapper.SaveMapping(ctx, "smbc", mappings); err != nil {
		t.Fatalf("SaveMapping failed: %v", err)
	}

	got, err := mapper.GetMapping(ctx, "smbc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2 after dropping unnamed rows", len(got))
	}
	if got[0].OriginalName != "日付" || got[1].OriginalName != "摘要" {
		t.Errorf("kept rows = %q, %q", got[0].OriginalName, got[1].OriginalName)
	}
}

func TestSaveMappingFillsDefaults(t *testing.T) {
	store := createTestStore(t)
	mapper := NewColumnMapper(store)
	ctx := context.Background()

	mappings := []model.ColumnMapping{
		{OriginalName: "差引残高", StandardName: "balance"},
	}
	if err := mapper.SaveMapping(ctx, "mufg", mappings); err != nil {
		t.Fatal(err)
	}

	got, err := mapper.GetMapping(ctx, "mufg")
	if err != nil {
		t.Fatal(err)
	}
	if got[0].DisplayName != "差引残高" {
		t.Errorf("display name = %q, want original name default", got[0].DisplayName)
	}
	if got[0].DataType != model.ColumnCurrency {
		t.Errorf("data type = %q, want inferred currency", got[0].DataType)
	}
}

func TestSaveMappingReplacesWholesale(t *testing.T) {
	store := createTestStore(t)
	mapper := NewColumnMapper(store)
	ctx := context.Background()

	first := []model.ColumnMapping{
		{OriginalName: "日付", StandardName: "date", Position: 0},
		{OriginalName: "摘要", StandardName: "description", Position: 1},
	}
	second := []model.ColumnMapping{
		{OriginalName: "取引日", StandardName: "date", Position: 0},
	}
	if err := mapper.SaveMapping(ctx, "resona", first); err != nil {
		t.Fatal(err)
	}
	if err := mapper.SaveMapping(ctx, "resona", second); err != nil {
		t.Fatal(err)
	}

	got, err := mapper.GetMapping(ctx, "resona")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].OriginalName != "取引日" {
		t.Errorf("mapping after second save = %+v", got)
	}
}
