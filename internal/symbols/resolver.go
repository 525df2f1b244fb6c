package symbols

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/chart-proxy/internal/cache"
	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
)

// Match kinds, in priority order
const (
	KindEpic           = "epic"
	KindNormalizedEpic = "normalized_epic"
	KindMarketID       = "market_id"
	KindInstrumentName = "instrument_name"
	KindPartialName    = "partial_name"
	KindFirstResult    = "first_result"
)

var volatilityAliases = []string{"VIX", "VIX.XO", "VOLATILITY", "CBOE VIX"}

// MarketSearcher runs an upstream instrument search
type MarketSearcher interface {
	SearchMarkets(ctx context.Context, sess *models.Session, term string) (*models.MarketsResponse, error)
}

// Match is a resolved instrument identifier
type Match struct {
	Epic    string `json:"epic"`
	Variant string `json:"variant"`
	Kind    string `json:"kind"`
}

// LowConfidence reports whether the match was a guess: the search returned
// results but none of them matched the term
func (m Match) LowConfidence() bool {
	return m.Kind == KindFirstResult
}

// Resolver maps a free-form term to an upstream epic via instrument search
type Resolver struct {
	searcher MarketSearcher
	store    cache.Store
	ttl      time.Duration
	logger   *logrus.Entry
}

// NewResolver creates a resolver. Confident matches are memoized in store for
// ttl; store may be nil.
func NewResolver(searcher MarketSearcher, store cache.Store, ttl time.Duration, logger *logrus.Logger) *Resolver {
	if store == nil {
		store = cache.NopStore{}
	}
	return &Resolver{
		searcher: searcher,
		store:    store,
		ttl:      ttl,
		logger:   logger.WithField("component", "symbol-resolver"),
	}
}

// Resolve searches for term and its variants and returns the best match of
// the first variant whose search yields results. Search failures are skipped,
// never returned.
func (r *Resolver) Resolve(ctx context.Context, term string, sess *models.Session) (Match, bool) {
	key := cacheKey(term)
	if key != "" {
		var cached Match
		if found, err := r.store.GetJSON(ctx, key, &cached); err != nil {
			r.logger.WithError(err).Warn("Resolver cache read failed")
		} else if found && cached.Epic != "" {
			r.logger.WithFields(logrus.Fields{"term": term, "epic": cached.Epic}).Debug("Resolved from cache")
			return cached, true
		}
	}

	for _, variant := range Variants(term) {
		if ctx.Err() != nil {
			return Match{}, false
		}

		resp, err := r.searcher.SearchMarkets(ctx, sess, variant)
		if err != nil {
			r.logger.WithError(err).WithField("variant", variant).Warn("Market search failed")
			continue
		}
		if resp == nil || len(resp.Markets) == 0 {
			continue
		}

		m, ok := selectMarket(resp.Markets, variant)
		if !ok {
			continue
		}

		r.logger.WithFields(logrus.Fields{
			"term":    term,
			"variant": variant,
			"epic":    m.Epic,
			"kind":    m.Kind,
		}).Info("Resolved symbol")

		// guesses are not cached so a later exact listing can win
		if key != "" && !m.LowConfidence() {
			if err := r.store.SetJSON(ctx, key, m, r.ttl); err != nil {
				r.logger.WithError(err).Warn("Resolver cache write failed")
			}
		}
		return m, true
	}

	return Match{}, false
}

// Variants returns the search terms tried for term, in order, without
// duplicates or empty strings
func Variants(term string) []string {
	stripped := alphanumeric(term)
	candidates := []string{term, stripped, strings.ToLower(stripped)}

	upper := strings.ToUpper(term)
	if strings.Contains(upper, "VIX") || strings.Contains(upper, "VOLATILITY") {
		candidates = append(candidates, volatilityAliases...)
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Normalize strips everything but ASCII letters and digits and lowercases
func Normalize(s string) string {
	return strings.ToLower(alphanumeric(s))
}

func selectMarket(markets []models.Market, variant string) (Match, bool) {
	lower := strings.ToLower(variant)
	norm := Normalize(variant)

	find := func(kind string, pred func(models.Market) bool) (Match, bool) {
		for _, mk := range markets {
			if mk.Epic != "" && pred(mk) {
				return Match{Epic: mk.Epic, Variant: variant, Kind: kind}, true
			}
		}
		return Match{}, false
	}

	rules := []struct {
		kind string
		pred func(models.Market) bool
	}{
		{KindEpic, func(mk models.Market) bool { return strings.ToLower(mk.Epic) == lower }},
		{KindNormalizedEpic, func(mk models.Market) bool { return norm != "" && Normalize(mk.Epic) == norm }},
		{KindMarketID, func(mk models.Market) bool { return norm != "" && Normalize(mk.MarketID) == norm }},
		{KindInstrumentName, func(mk models.Market) bool { return norm != "" && Normalize(mk.InstrumentName) == norm }},
		{KindPartialName, func(mk models.Market) bool {
			return mk.InstrumentName != "" && strings.Contains(strings.ToLower(mk.InstrumentName), lower)
		}},
		{KindFirstResult, func(models.Market) bool { return true }},
	}

	for _, rule := range rules {
		if m, ok := find(rule.kind, rule.pred); ok {
			return m, true
		}
	}
	return Match{}, false
}

func alphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}

func cacheKey(term string) string {
	norm := Normalize(term)
	if norm == "" {
		return ""
	}
	return "resolve:" + norm
}
