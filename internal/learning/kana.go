// Package learning implements the correction-learning subsystem: recording
// user edits, mining substitution patterns from them, and replaying those
// patterns against freshly extracted transactions.
package learning

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ktsuji/passbook-flow/internal/normalize"
	"github.com/ktsuji/passbook-flow/internal/service"
)

// kanaMinConfidence gates which dictionary entries participate in the
// substring pass.
const kanaMinConfidence = 0.6

// KanaConverter resolves half-width katakana strings to their learned
// full-width forms. Conversions are memoized in an explicit process-lifetime
// cache; the cache is best effort and may be dropped at any time without
// correctness impact.
type KanaConverter struct {
	store service.Storage
	cache *gocache.Cache
}

// NewKanaConverter creates a converter backed by the given store.
func NewKanaConverter(store service.Storage) *KanaConverter {
	return &KanaConverter{
		store: store,
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Convert resolves half-width katakana in text. Text without half-width
// characters is returned unchanged. Resolution order: cache, exact dictionary
// match (scope-specific before generic), then substring replacement over
// high-confidence entries, longest kana text first. The result may equal the
// input when nothing matches.
func (c *KanaConverter) Convert(ctx context.Context, text, scope string) string {
	if !normalize.ContainsHalfWidthKana(text) {
		return text
	}

	key := cacheKey(text, scope)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string)
	}

	entry, err := c.store.LookupKana(ctx, text, scope)
	if err == nil {
		c.cache.Set(key, entry.ConvertedText, gocache.NoExpiration)
		if bumpErr := c.store.BumpKanaUsage(ctx, text); bumpErr != nil {
			slog.Warn("failed to bump kana usage", "kana", text, "error", bumpErr)
		}
		return entry.ConvertedText
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Warn("kana lookup failed", "kana", text, "error", err)
		return text
	}

	converted := c.partialConvert(ctx, text)
	c.cache.Set(key, converted, gocache.NoExpiration)
	return converted
}

// partialConvert replaces every known kana substring. Entries arrive longest
// first so a short entry cannot corrupt a longer term it is contained in.
func (c *KanaConverter) partialConvert(ctx context.Context, text string) string {
	entries, err := c.store.ListKanaByConfidence(ctx, kanaMinConfidence)
	if err != nil {
		slog.Warn("kana dictionary scan failed", "error", err)
		return text
	}

	result := text
	for _, entry := range entries {
		if strings.Contains(result, entry.KanaText) {
			result = strings.ReplaceAll(result, entry.KanaText, entry.ConvertedText)
		}
	}
	return result
}

// LearnPattern records one observed kana substitution and drops any cached
// conversions, since the dictionary they derive from just changed.
func (c *KanaConverter) LearnPattern(ctx context.Context, kanaText, convertedText, scope string) error {
	if err := c.store.LearnKana(ctx, kanaText, convertedText, scope); err != nil {
		return err
	}
	c.Reset()
	return nil
}

// Reset discards all memoized conversions.
func (c *KanaConverter) Reset() {
	c.cache.Flush()
}

func cacheKey(text, scope string) string {
	return text + ":" + scope
}
