package storage

import (
	"context"
	"database/sql"
	"math"
	"testing"
)

func TestLearnKanaInsertsAtInitialConfidence(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.LearnKana(ctx, "ｺﾝﾋﾞﾆ", "コンビニ", ""); err != nil {
		t.Fatalf("LearnKana failed: %v", err)
	}

	entry, err := store.LookupKana(ctx, "ｺﾝﾋﾞﾆ", "")
	if err != nil {
		t.Fatalf("LookupKana failed: %v", err)
	}
	if entry.ConvertedText != "コンビニ" {
		t.Errorf("converted = %q", entry.ConvertedText)
	}
	if entry.ConfidenceScore != 0.5 {
		t.Errorf("confidence = %f, want 0.5", entry.ConfidenceScore)
	}
	if entry.UsageCount != 0 {
		t.Errorf("usage = %d, want 0", entry.UsageCount)
	}
}

func TestLearnKanaReinforcesExistingEntry(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := store.LearnKana(ctx, "ｷﾞﾝｺｳ", "銀行", "mizuho"); err != nil {
			t.Fatalf("LearnKana %d failed: %v", i, err)
		}
	}

	entry, err := store.LookupKana(ctx, "ｷﾞﾝｺｳ", "mizuho")
	if err != nil {
		t.Fatalf("LookupKana failed: %v", err)
	}
	want := 0.5 + 3*0.05
	if math.Abs(entry.ConfidenceScore-want) > 1e-9 {
		t.Errorf("confidence = %f, want %f", entry.ConfidenceScore, want)
	}
	if entry.UsageCount != 3 {
		t.Errorf("usage = %d, want 3", entry.UsageCount)
	}
}

func TestLearnKanaConfidenceCapsAtOne(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := store.LearnKana(ctx, "ﾃｽﾄ", "テスト", ""); err != nil {
			t.Fatal(err)
		}
	}

	entry, err := store.LookupKana(ctx, "ﾃｽﾄ", "")
	if err != nil {
		t.Fatal(err)
	}
	if entry.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %f, want capped 1.0", entry.ConfidenceScore)
	}
}

func TestLearnKanaFirstWriterWins(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.LearnKana(ctx, "ｾﾌﾞﾝ", "セブン", ""); err != nil {
		t.Fatal(err)
	}
	// A conflicting mapping for the same kana text must not overwrite.
	if err := store.LearnKana(ctx, "ｾﾌﾞﾝ", "セヴン", ""); err != nil {
		t.Fatal(err)
	}

	entry, err := store.LookupKana(ctx, "ｾﾌﾞﾝ", "")
	if err != nil {
		t.Fatal(err)
	}
	if entry.ConvertedText != "セブン" {
		t.Errorf("converted = %q, first writer should win", entry.ConvertedText)
	}
}

func TestLookupKanaPrefersScopedEntry(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.LearnKana(ctx, "ﾎﾝﾃﾝ", "本店", ""); err != nil {
		t.Fatal(err)
	}
	if err := store.LearnKana(ctx, "ﾎﾝﾃﾝ支", "本店支", "mufg"); err != nil {
		t.Fatal(err)
	}

	// Scoped lookup of a generic entry still resolves.
	entry, err := store.LookupKana(ctx, "ﾎﾝﾃﾝ", "mufg")
	if err != nil {
		t.Fatalf("LookupKana failed: %v", err)
	}
	if entry.Scope != "" {
		t.Errorf("scope = %q, want generic fallback", entry.Scope)
	}

	// An entry scoped to another bank is invisible.
	if _, err := store.LookupKana(ctx, "ﾎﾝﾃﾝ支", "mizuho"); err != sql.ErrNoRows {
		t.Errorf("foreign-scope lookup err = %v, want sql.ErrNoRows", err)
	}
}

func TestBumpKanaUsage(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.LearnKana(ctx, "ｶﾌﾞ", "株", ""); err != nil {
		t.Fatal(err)
	}
	if err := store.BumpKanaUsage(ctx, "ｶﾌﾞ"); err != nil {
		t.Fatalf("BumpKanaUsage failed: %v", err)
	}
	if err := store.BumpKanaUsage(ctx, "ｶﾌﾞ"); err != nil {
		t.Fatalf("BumpKanaUsage failed: %v", err)
	}

	entry, err := store.LookupKana(ctx, "ｶﾌﾞ", "")
	if err != nil {
		t.Fatal(err)
	}
	if entry.UsageCount != 2 {
		t.Errorf("usage = %d, want 2", entry.UsageCount)
	}
}

func TestListKanaByConfidenceOrdersLongestFirst(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Push all three over the 0.6 threshold with a few reinforcements.
	for _, pair := range [][2]string{{"ｺ", "コ"}, {"ｺﾝﾋﾞﾆｴﾝｽ", "コンビニエンス"}, {"ｺﾝﾋﾞﾆ", "コンビニ"}} {
		for i := 0; i < 4; i++ {
			if err := store.LearnKana(ctx, pair[0], pair[1], ""); err != nil {
				t.Fatal(err)
			}
		}
	}

	entries, err := store.ListKanaByConfidence(ctx, 0.6)
	if err != nil {
		t.Fatalf("ListKanaByConfidence failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	wantOrder := []string{"ｺﾝﾋﾞﾆｴﾝｽ", "ｺﾝﾋﾞﾆ", "ｺ"}
	for i, want := range wantOrder {
		if entries[i].KanaText != want {
			t.Errorf("entry %d = %q, want %q (longest kana first)", i, entries[i].KanaText, want)
		}
	}
}

func TestListKanaByConfidenceExcludesLowConfidence(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// One observation leaves the entry at 0.5, below the threshold.
	if err := store.LearnKana(ctx, "ﾔｽｲ", "安い", ""); err != nil {
		t.Fatal(err)
	}

	entries, err := store.ListKanaByConfidence(ctx, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}
