package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chart-proxy/internal/exchange"
	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
)

// RawMarketSearcher returns upstream search bodies verbatim
type RawMarketSearcher interface {
	SearchMarketsRaw(ctx context.Context, sess *models.Session, term string) ([]byte, error)
}

// SearchService proxies instrument searches
type SearchService struct {
	sessions SessionProvider
	searcher RawMarketSearcher
	logger   *logrus.Entry
}

// NewSearchService creates a new search service
func NewSearchService(sessions SessionProvider, searcher RawMarketSearcher, logger *logrus.Logger) *SearchService {
	return &SearchService{
		sessions: sessions,
		searcher: searcher,
		logger:   logger.WithField("component", "search-service"),
	}
}

// Search runs an upstream instrument search and returns the body untouched
func (s *SearchService) Search(ctx context.Context, term string) ([]byte, error) {
	sess, err := s.sessions.GetValidSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain upstream session: %w", err)
	}

	body, err := s.searcher.SearchMarketsRaw(ctx, sess, term)
	if err != nil {
		var apiErr *exchange.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			s.sessions.Invalidate(sess)
		}
		s.logger.WithError(err).WithField("term", term).Warn("Market search failed")
		return nil, fmt.Errorf("markets search failed: %w", err)
	}
	return body, nil
}
