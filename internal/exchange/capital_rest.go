package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/chart-proxy/pkg/config"
	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
)

const maxResponseBytes = 10 << 20

// CapitalClient handles Capital.com REST API operations
type CapitalClient struct {
	config     *config.CapitalConfig
	httpClient *http.Client
	logger     *logrus.Entry
}

type sessionRequest struct {
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
	EncryptedPassword bool   `json:"encryptedPassword"`
}

// NewCapitalClient creates a new Capital.com REST client
func NewCapitalClient(cfg *config.CapitalConfig, logger *logrus.Logger) *CapitalClient {
	return &CapitalClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger.WithField("component", "capital-rest"),
	}
}

// CreateSession exchanges the configured credentials for a CST and
// security token pair. Timestamps are left for the caller to set.
func (c *CapitalClient) CreateSession(ctx context.Context) (*models.Session, error) {
	if err := c.config.ValidateCredentials(); err != nil {
		return nil, &AuthenticationError{Reason: "missing credentials", Err: err}
	}

	payload, err := json.Marshal(sessionRequest{
		Identifier: c.config.Identifier,
		Password:   c.config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	req, err := c.createRequest(ctx, http.MethodPost, c.config.APIBase+"/api/v1/session", bytes.NewReader(payload), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &AuthenticationError{
			Reason: fmt.Sprintf("status %d", resp.StatusCode),
			Err:    &APIError{Op: "create session", StatusCode: resp.StatusCode, Body: string(body)},
		}
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	cst := resp.Header.Get("CST")
	token := resp.Header.Get("X-SECURITY-TOKEN")
	if cst == "" || token == "" {
		return nil, &AuthenticationError{Reason: "response is missing CST or X-SECURITY-TOKEN"}
	}

	c.logger.Debug("Created Capital.com session")
	return &models.Session{CST: cst, SecurityToken: token}, nil
}

// GetPrices fetches historical bars. Any non-2xx response is returned as
// *APIError with the body preserved for classification.
func (c *CapitalClient) GetPrices(ctx context.Context, sess *models.Session, pr PriceRequest) (*models.PricesResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/prices/%s?%s", c.config.APIBase, url.PathEscape(pr.Epic), pr.Query().Encode())

	body, err := c.get(ctx, "get prices", endpoint, sess)
	if err != nil {
		return nil, err
	}

	var response models.PricesResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			c.logger.WithError(err).WithField("epic", pr.Epic).Warn("Unreadable prices payload, treating as empty")
			return &models.PricesResponse{}, nil
		}
	}

	c.logger.WithFields(logrus.Fields{
		"epic":       pr.Epic,
		"resolution": pr.Resolution,
		"count":      len(response.Prices),
	}).Debug("Fetched Capital.com prices")
	return &response, nil
}

// SearchMarketsRaw returns the upstream search body untouched. An empty term
// is sent without a searchTerm parameter.
func (c *CapitalClient) SearchMarketsRaw(ctx context.Context, sess *models.Session, term string) ([]byte, error) {
	endpoint := c.config.APIBase + "/api/v1/markets"
	if term != "" {
		endpoint += "?" + url.Values{"searchTerm": {term}}.Encode()
	}
	return c.get(ctx, "search markets", endpoint, sess)
}

// SearchMarkets runs an instrument search and decodes the hits
func (c *CapitalClient) SearchMarkets(ctx context.Context, sess *models.Session, term string) (*models.MarketsResponse, error) {
	body, err := c.SearchMarketsRaw(ctx, sess, term)
	if err != nil {
		return nil, err
	}

	response, err := models.ParseMarkets(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"term":  term,
		"count": len(response.Markets),
	}).Debug("Searched Capital.com markets")
	return response, nil
}

func (c *CapitalClient) get(ctx context.Context, op, endpoint string, sess *models.Session) ([]byte, error) {
	req, err := c.createRequest(ctx, http.MethodGet, endpoint, nil, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// createRequest creates an HTTP request with the API key and, when a session
// is given, its tokens
func (c *CapitalClient) createRequest(ctx context.Context, method, endpoint string, body io.Reader, sess *models.Session) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-CAP-API-KEY", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req.Header.Set("CST", sess.CST)
		req.Header.Set("X-SECURITY-TOKEN", sess.SecurityToken)
	}
	return req, nil
}
