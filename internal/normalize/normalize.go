// Package normalize fixes half-width katakana and common OCR misreadings in
// extracted passbook text.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ocrTerms are multi-character sequences the vision models routinely
// misread; replacements run after NFKC so both keys and the input are in
// full-width form by then. Keys are kept half-width because they are applied
// before NFKC as well, catching strings NFKC alone cannot fix.
var ocrTerms = []struct {
	from string
	to   string
}{
	{"ｱｿｼｴｰｼｮﾝ", "アソシエーション"},
	{"ﾓﾉﾀﾛｰ", "モノタロー"},
	{"ﾗｲﾌ", "ライフ"},
	{"ｸﾚｼﾞｯﾄ", "クレジット"},
	{"ﾋﾞｻﾞ", "ビザ"},
	{"ｾﾌﾞﾝ", "セブン"},
	{"ﾀｲﾑｽﾞｶｰ", "タイムズカー"},
	{"ﾁｸﾎｳ", "チクホウ"},
	{"ﾕｱｰｽﾞ", "ユアーズ"},
	{"ｽﾏｯｸ", "スマック"},
	{"ﾃｸﾎﾟｳ", "テクポウ"},
	{"ｱｹﾞ", "アゲ"},
}

// bankTerms canonicalize common banking vocabulary.
var bankTerms = []struct {
	from string
	to   string
}{
	{"ｸﾚｼﾞｯﾄｶｰﾄﾞ", "クレジットカード"},
	{"ﾃﾞﾋﾞｯﾄ", "デビット"},
	{"ﾌﾘｺﾐﾃｽｳﾘｮｳ", "振込手数料"},
	{"ｿｳｺﾞｳﾌﾘｺﾐ", "総合振込"},
	{"ﾌﾘｺﾐ", "振込"},
	{"ｹﾝｺｳﾎｹﾝ", "健康保険"},
	{"ｲﾘｮｳﾎｹﾝ", "医療保険"},
	{"ｼｬｶｲﾎｹﾝ", "社会保険"},
	{"ｱｲﾃｨｰｴﾑ", "ATM"},
	{"ﾘﾖｳﾃｽｳﾘｮｳ", "利用手数料"},
}

// ContainsHalfWidthKana reports whether text has any codepoint in the
// half-width katakana block (U+FF66 to U+FF9F).
func ContainsHalfWidthKana(text string) bool {
	for _, r := range text {
		if r >= 'ｦ' && r <= 'ﾟ' {
			return true
		}
	}
	return false
}

// Katakana converts half-width katakana to full-width and applies the OCR
// term table.
func Katakana(text string) string {
	if text == "" {
		return text
	}

	for _, t := range ocrTerms {
		text = strings.ReplaceAll(text, t.from, t.to)
	}

	// NFKC folds the remaining half-width katakana (including voiced marks)
	// into their full-width composed forms.
	return norm.NFKC.String(text)
}

// BankTerms applies the banking vocabulary table.
func BankTerms(text string) string {
	if text == "" {
		return text
	}
	for _, t := range bankTerms {
		text = strings.ReplaceAll(text, t.from, t.to)
	}
	return text
}

// Text runs the full normalization: banking terms, then katakana widening,
// then whitespace collapse. Already-canonical input passes through unchanged.
func Text(text string) string {
	if text == "" {
		return text
	}

	normalized := BankTerms(text)
	normalized = Katakana(normalized)

	return strings.Join(strings.Fields(normalized), " ")
}
