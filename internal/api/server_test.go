package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apiHandlers "github.com/chart-proxy/internal/api/handlers"
	"github.com/chart-proxy/internal/services"
	"github.com/chart-proxy/pkg/config"
	"github.com/chart-proxy/pkg/models"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chartCall struct {
	symbol   string
	res      models.Resolution
	from, to string
}

type fakeCharts struct {
	calls []chartCall
	err   error
}

func (f *fakeCharts) GetChart(ctx context.Context, symbol string, res models.Resolution, from, to string) (*models.ChartResponse, error) {
	f.calls = append(f.calls, chartCall{symbol, res, from, to})
	if f.err != nil {
		return nil, f.err
	}
	series := &models.CandleSeries{
		Symbol:     symbol,
		Resolution: res,
		Timestamps: []int64{1714521600},
		Opens:      []float64{1},
		Highs:      []float64{2},
		Lows:       []float64{0.5},
		Closes:     []float64{1.5},
		Volumes:    []float64{10},
	}
	return models.NewChartResponse(series, "USD", "Capital.com", nil), nil
}

type fakeSearch struct {
	body []byte
	err  error
	term string
}

func (f *fakeSearch) Search(ctx context.Context, term string) ([]byte, error) {
	f.term = term
	return f.body, f.err
}

func newTestServer(t *testing.T, charts *fakeCharts, search *fakeSearch) http.Handler {
	t.Helper()

	cfg, err := config.LoadWithLookuper(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := apiHandlers.NewChartHandler(charts, search, models.ResolutionDay, logger)
	return NewServer(cfg, logger, h).Handler()
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChartMissingSymbol(t *testing.T) {
	charts := &fakeCharts{}
	h := newTestServer(t, charts, &fakeSearch{})

	rec := do(h, http.MethodGet, "/chart?resolution=DAY", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing epic/symbol parameter"}`, rec.Body.String())
	assert.Empty(t, charts.calls)
}

func TestChartSuccess(t *testing.T) {
	charts := &fakeCharts{}
	h := newTestServer(t, charts, &fakeSearch{})

	rec := do(h, http.MethodGet, "/chart?symbol=US500&resolution=minute_5&from=2024-05-01&to=2024-05-02", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, []chartCall{{"US500", models.ResolutionMinute5, "2024-05-01", "2024-05-02"}}, charts.calls)

	var resp models.ChartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chart.Result, 1)
	assert.Equal(t, "US500", resp.Chart.Result[0].Meta.Symbol)
	assert.Equal(t, []int64{1714521600}, resp.Chart.Result[0].Timestamp)
}

func TestRootServesChartWithDefaults(t *testing.T) {
	charts := &fakeCharts{}
	h := newTestServer(t, charts, &fakeSearch{})

	rec := do(h, http.MethodGet, "/?epic=GOLD&symbol=IGNORED", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []chartCall{{"GOLD", models.ResolutionDay, "", ""}}, charts.calls)
}

func TestChartFailureCarriesTrace(t *testing.T) {
	trace := &models.FetchTrace{}
	trace.Add(models.Attempt{Epic: "US500", Resolution: models.ResolutionDay, Status: 502, Outcome: models.OutcomeFatal})
	charts := &fakeCharts{err: &services.ExhaustedError{
		Epic:       "US500",
		Resolution: models.ResolutionDay,
		StatusCode: 502,
		Summary:    "Bad gateway",
		Trace:      trace,
	}}
	h := newTestServer(t, charts, &fakeSearch{})

	rec := do(h, http.MethodGet, "/chart?epic=US500", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Error   string            `json:"error"`
		Details models.FetchTrace `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Market data request failed (502) for US500 @ DAY - Bad gateway", body.Error)
	require.Len(t, body.Details.Attempts, 1)
	assert.Equal(t, 502, body.Details.Attempts[0].Status)
}

func TestSearchReturnsUpstreamBody(t *testing.T) {
	search := &fakeSearch{body: []byte(`{"markets":[{"epic":"AAPL"}]}`)}
	h := newTestServer(t, &fakeCharts{}, search)

	rec := do(h, http.MethodGet, "/search?term=apple", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "apple", search.term)
	assert.Equal(t, `{"markets":[{"epic":"AAPL"}]}`, rec.Body.String())
}

func TestSearchFailure(t *testing.T) {
	search := &fakeSearch{err: errors.New("markets search failed: boom")}
	h := newTestServer(t, &fakeCharts{}, search)

	rec := do(h, http.MethodGet, "/search?term=apple", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"markets search failed: boom"}`, rec.Body.String())
}

func TestUnknownPath(t *testing.T) {
	h := newTestServer(t, &fakeCharts{}, &fakeSearch{})

	rec := do(h, http.MethodGet, "/quotes", map[string]string{"Origin": "https://charts.example.com"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOnSuccessAndPreflight(t *testing.T) {
	h := newTestServer(t, &fakeCharts{}, &fakeSearch{})

	rec := do(h, http.MethodGet, "/chart?epic=US500", map[string]string{"Origin": "https://charts.example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodOptions, "/chart", map[string]string{
		"Origin":                        "https://charts.example.com",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRoutesAreGetOnly(t *testing.T) {
	charts := &fakeCharts{}
	search := &fakeSearch{}
	h := newTestServer(t, charts, search)

	for _, target := range []string{"/", "/chart?epic=US500", "/search?term=apple"} {
		rec := do(h, http.MethodPost, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, "Not Found", rec.Body.String(), target)
	}
	assert.Empty(t, charts.calls)
	assert.Empty(t, search.term)
}
