package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chart-proxy/pkg/config"
	"github.com/chart-proxy/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSClient handles NATS messaging operations
type NATSClient struct {
	conn   *nats.Conn
	logger *logrus.Entry
	prefix string

	// Subscriptions
	subs   map[string]*nats.Subscription
	subsMu sync.RWMutex
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name("chart-proxy"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:   conn,
		logger: logger.WithField("component", "nats"),
		prefix: cfg.SubjectPrefix,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.subsMu.Lock()
	for _, sub := range nc.subs {
		sub.Unsubscribe()
	}
	nc.subs = make(map[string]*nats.Subscription)
	nc.subsMu.Unlock()

	nc.conn.Close()
	return nil
}

// Drain drains the connection (graceful shutdown)
func (nc *NATSClient) Drain() error {
	return nc.conn.Drain()
}

// PublishJSON publishes arbitrary JSON data to a subject
func (nc *NATSClient) PublishJSON(subject string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, jsonData); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// PublishFetchEvent publishes the outcome of a chart fetch to
// <prefix>.<epic>
func (nc *NATSClient) PublishFetchEvent(event *models.FetchEvent) error {
	epic := event.UsedEpic
	if epic == "" {
		epic = event.RequestedSymbol
	}
	return nc.PublishJSON(FetchSubject(nc.prefix, epic), event)
}

// SubscribeFetchEvents delivers every fetch event under the prefix
func (nc *NATSClient) SubscribeFetchEvents(handler func(*models.FetchEvent)) error {
	subject := nc.prefix + ".>"

	sub, err := nc.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event models.FetchEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			nc.logger.WithError(err).WithField("subject", msg.Subject).Error("Failed to unmarshal fetch event")
			return
		}
		handler(&event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	nc.subsMu.Lock()
	nc.subs[subject] = sub
	nc.subsMu.Unlock()

	return nil
}

// FetchSubject builds the subject for an epic. Characters NATS treats as
// separators or wildcards are replaced.
func FetchSubject(prefix, epic string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, epic)
	if token == "" {
		token = "unknown"
	}
	return prefix + "." + token
}
