package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chart-proxy/internal/exchange"
	"github.com/chart-proxy/internal/symbols"
	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
)

// Phrases in a 400 body that mean "nothing at this resolution" rather than a
// malformed request
var noDataPhrases = []string{
	"no price data",
	"no data available",
	"validation.max",
	"validation.min",
	"not available for the requested resolution",
	"invalid.daterange",
	"invalid date range",
	"error.invalid.daterange",
	"error.invalid.from",
	"error.invalid.to",
}

// SessionProvider supplies upstream sessions
type SessionProvider interface {
	GetValidSession(ctx context.Context) (*models.Session, error)
	Invalidate(s *models.Session)
}

// PriceFetcher issues upstream price-history requests
type PriceFetcher interface {
	GetPrices(ctx context.Context, sess *models.Session, req exchange.PriceRequest) (*models.PricesResponse, error)
}

// EpicResolver maps a term to an alternative epic
type EpicResolver interface {
	Resolve(ctx context.Context, term string, sess *models.Session) (symbols.Match, bool)
}

// MarketData is a successful fetch and the epic/resolution that served it
type MarketData struct {
	Data            *models.PricesResponse
	UsedResolution  models.Resolution
	UsedEpic        string
	RequestedSymbol string
	Trace           *models.FetchTrace
}

// MarketDataService fetches price history, falling back to coarser
// resolutions and to resolved epics when the upstream has no data
type MarketDataService struct {
	sessions     SessionProvider
	prices       PriceFetcher
	resolver     EpicResolver
	fetchTimeout time.Duration
	logger       *logrus.Entry
	now          func() time.Time
}

// NewMarketDataService creates a new market data service. A zero
// fetchTimeout leaves the caller's deadline in charge.
func NewMarketDataService(
	sessions SessionProvider,
	prices PriceFetcher,
	resolver EpicResolver,
	fetchTimeout time.Duration,
	logger *logrus.Logger,
) *MarketDataService {
	return &MarketDataService{
		sessions:     sessions,
		prices:       prices,
		resolver:     resolver,
		fetchTimeout: fetchTimeout,
		logger:       logger.WithField("component", "market-data"),
		now:          time.Now,
	}
}

type attemptKey struct {
	epic       string
	resolution models.Resolution
}

type failure struct {
	epic       string
	resolution models.Resolution
	status     int
	body       string
	err        error
}

// attemptState is the search-so-far of one FetchMarketData call
type attemptState struct {
	requestedSymbol     string
	requestedResolution models.Resolution

	epic         string
	queue        []models.Resolution
	triedRes     map[models.Resolution]bool
	triedEpics   map[string]bool
	attempted    map[attemptKey]bool
	epicFallback bool

	last  *failure
	trace *models.FetchTrace
}

func newAttemptState(symbol string, res models.Resolution) *attemptState {
	st := &attemptState{
		requestedSymbol:     symbol,
		requestedResolution: res,
		triedEpics:          make(map[string]bool),
		attempted:           make(map[attemptKey]bool),
		trace:               &models.FetchTrace{Attempts: []models.Attempt{}},
	}
	st.startPhase(symbol)
	return st
}

// startPhase switches to a new epic with a fresh resolution search
func (st *attemptState) startPhase(epic string) {
	st.epic = epic
	st.queue = []models.Resolution{st.requestedResolution}
	st.triedRes = make(map[models.Resolution]bool)
	st.epicFallback = false
}

// next pops the next resolution not yet attempted for the current epic
func (st *attemptState) next() (models.Resolution, bool) {
	for len(st.queue) > 0 {
		r := st.queue[0]
		st.queue = st.queue[1:]
		if !st.attempted[attemptKey{st.epic, r}] {
			st.attempted[attemptKey{st.epic, r}] = true
			return r, true
		}
	}
	return "", false
}

// queueFallbacks marks r tried and puts its untried chain at the front of
// the queue
func (st *attemptState) queueFallbacks(r models.Resolution) {
	st.triedRes[r] = true
	st.trace.ResolutionFallback = true

	queued := make(map[models.Resolution]bool, len(st.queue))
	for _, q := range st.queue {
		queued[q] = true
	}

	var front []models.Resolution
	for _, c := range r.FallbackChain() {
		if st.triedRes[c] || queued[c] || st.attempted[attemptKey{st.epic, c}] {
			continue
		}
		front = append(front, c)
	}
	st.queue = append(front, st.queue...)
}

func (st *attemptState) record(r models.Resolution, status int, outcome, summary string) {
	st.trace.Add(models.Attempt{
		Epic:       st.epic,
		Resolution: r,
		Status:     status,
		Outcome:    outcome,
		Summary:    summary,
	})
}

func (st *attemptState) exhausted() error {
	if st.last == nil {
		return &ExhaustedError{
			Epic:       st.epic,
			Resolution: st.requestedResolution,
			Trace:      st.trace,
		}
	}
	summary := summarizeError(st.last.body)
	if summary == "" && st.last.err != nil && st.last.status == 0 {
		summary = truncate(st.last.err.Error(), maxSummaryLen)
	}
	return &ExhaustedError{
		Epic:       st.last.epic,
		Resolution: st.last.resolution,
		StatusCode: st.last.status,
		Summary:    summary,
		Trace:      st.trace,
		Err:        st.last.err,
	}
}

// FetchMarketData fetches price history for symbol. On "no data" style
// rejections it walks the resolution's fallback chain; on 400/404 it asks the
// resolver for an alternative epic and restarts at the requested resolution.
// No (epic, resolution) pair is requested twice.
func (s *MarketDataService) FetchMarketData(ctx context.Context, symbol string, res models.Resolution, from, to string) (*MarketData, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	st := newAttemptState(symbol, res)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("market data fetch for %s aborted: %w", symbol, err)
		}

		r, ok := st.next()
		if !ok {
			if st.epicFallback && !st.triedEpics[st.epic] {
				if next, found := s.alternativeEpic(ctx, st); found {
					st.startPhase(next)
					continue
				}
			}
			err := st.exhausted()
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Market data search exhausted")
			return nil, err
		}

		data, err := s.attempt(ctx, st, r, from, to)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}
}

// attempt requests one (epic, resolution) pair. It returns data on success,
// nil, nil when the search should go on, and an error when it must stop.
func (s *MarketDataService) attempt(ctx context.Context, st *attemptState, r models.Resolution, from, to string) (*MarketData, error) {
	sess, err := s.sessions.GetValidSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain upstream session: %w", err)
	}

	req := exchange.BuildPriceRequest(st.epic, r, from, to, s.now())
	if len(req.Adjustments) > 0 {
		st.trace.RangeAdjustments = req.Adjustments
	}

	log := s.logger.WithFields(logrus.Fields{
		"epic":       st.epic,
		"resolution": r,
	})

	payload, err := s.prices.GetPrices(ctx, sess, req)
	if err == nil {
		st.record(r, http.StatusOK, models.OutcomeSuccess, "")
		if r != st.requestedResolution || st.epic != st.requestedSymbol {
			log.WithField("requested", st.requestedSymbol).Info("Served by fallback")
		}
		return &MarketData{
			Data:            payload,
			UsedResolution:  r,
			UsedEpic:        st.epic,
			RequestedSymbol: st.requestedSymbol,
			Trace:           st.trace,
		}, nil
	}

	var apiErr *exchange.APIError
	if !errors.As(err, &apiErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("market data fetch for %s aborted: %w", st.requestedSymbol, ctxErr)
		}
		log.WithError(err).Warn("Price request failed")
		st.record(r, 0, models.OutcomeTransport, truncate(err.Error(), maxSummaryLen))
		st.last = &failure{epic: st.epic, resolution: r, err: err}
		return nil, nil
	}

	status := apiErr.StatusCode
	summary := summarizeError(apiErr.Body)
	st.last = &failure{epic: st.epic, resolution: r, status: status, body: apiErr.Body, err: apiErr}

	if apiErr.IsAuthFailure() {
		st.record(r, status, models.OutcomeFatal, summary)
		if status == http.StatusUnauthorized {
			s.sessions.Invalidate(sess)
		}
		log.WithField("status", status).Error("Upstream refused credentials")
		return nil, &ValidationError{
			Epic:       st.epic,
			Resolution: r,
			StatusCode: status,
			Summary:    summary,
			Trace:      st.trace,
			Err:        apiErr,
		}
	}

	if status >= http.StatusInternalServerError {
		st.record(r, status, models.OutcomeFatal, summary)
		log.WithField("status", status).Warn("Upstream server error")
		return nil, nil
	}

	if allowsResolutionFallback(status, apiErr.Body) {
		st.record(r, status, models.OutcomeFallback, summary)
		st.queueFallbacks(r)
		log.WithField("status", status).Info("No data at resolution, trying coarser ones")
	} else {
		st.record(r, status, models.OutcomeNoData, summary)
	}

	if (status == http.StatusBadRequest || status == http.StatusNotFound) && !st.triedEpics[st.epic] {
		st.epicFallback = true
	}
	return nil, nil
}

// alternativeEpic marks the current epic tried and asks the resolver for a
// different one
func (s *MarketDataService) alternativeEpic(ctx context.Context, st *attemptState) (string, bool) {
	st.triedEpics[st.epic] = true

	sess, err := s.sessions.GetValidSession(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("No session for epic resolution")
		return "", false
	}

	log := s.logger.WithField("epic", st.epic)
	log.Info("Attempting to resolve alternative epic")

	m, ok := s.resolver.Resolve(ctx, st.epic, sess)
	if !ok || m.Epic == st.epic || st.triedEpics[m.Epic] {
		log.Info("No alternative epic found")
		return "", false
	}

	st.trace.EpicFallback = true
	st.trace.ResolvedEpic = m.Epic
	st.trace.MatchKind = m.Kind
	st.trace.LowConfidence = m.LowConfidence()

	log.WithFields(logrus.Fields{
		"alternative": m.Epic,
		"kind":        m.Kind,
	}).Info("Found alternative epic")
	return m.Epic, true
}

func allowsResolutionFallback(status int, body string) bool {
	switch status {
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	case http.StatusBadRequest:
		if body == "" {
			return true
		}
		lower := strings.ToLower(body)
		for _, phrase := range noDataPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}
