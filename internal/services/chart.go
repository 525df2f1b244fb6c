package services

import (
	"context"
	"errors"
	"time"

	"github.com/chart-proxy/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventPublisher receives one event per chart fetch
type EventPublisher interface {
	PublishFetchEvent(event *models.FetchEvent) error
}

// ChartService renders market data into the chart envelope and reports each
// fetch to the event publisher, if any
type ChartService struct {
	market       *MarketDataService
	publisher    EventPublisher
	currency     string
	exchangeName string
	logger       *logrus.Entry
}

// NewChartService creates a new chart service. publisher may be nil.
func NewChartService(market *MarketDataService, publisher EventPublisher, currency, exchangeName string, logger *logrus.Logger) *ChartService {
	return &ChartService{
		market:       market,
		publisher:    publisher,
		currency:     currency,
		exchangeName: exchangeName,
		logger:       logger.WithField("component", "chart-service"),
	}
}

// GetChart fetches and converts price history for symbol
func (s *ChartService) GetChart(ctx context.Context, symbol string, res models.Resolution, from, to string) (*models.ChartResponse, error) {
	start := time.Now()

	md, err := s.market.FetchMarketData(ctx, symbol, res, from, to)
	if err != nil {
		s.publish(&models.FetchEvent{
			RequestedSymbol: symbol,
			Attempts:        attemptsOf(err),
			Error:           err.Error(),
		}, start)
		return nil, err
	}

	series := ToCanonical(md.Data, md.UsedEpic, md.UsedResolution, md.RequestedSymbol)

	s.publish(&models.FetchEvent{
		RequestedSymbol: symbol,
		UsedEpic:        md.UsedEpic,
		UsedResolution:  md.UsedResolution,
		Bars:            series.Len(),
		Attempts:        md.Trace.Attempts,
	}, start)

	return models.NewChartResponse(series, s.currency, s.exchangeName, md.Trace), nil
}

func (s *ChartService) publish(event *models.FetchEvent, start time.Time) {
	if s.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.DurationMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()

	if err := s.publisher.PublishFetchEvent(event); err != nil {
		s.logger.WithError(err).WithField("symbol", event.RequestedSymbol).Warn("Failed to publish fetch event")
	}
}

// TraceOf returns the fallback trace carried by a fetch error, or nil
func TraceOf(err error) *models.FetchTrace {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Trace
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Trace
	}
	return nil
}

func attemptsOf(err error) []models.Attempt {
	if t := TraceOf(err); t != nil {
		return t.Attempts
	}
	return []models.Attempt{}
}
