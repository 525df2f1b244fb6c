package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chart-proxy/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"})
	assert.Error(t, err)

	l, err := New(&config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.Level)
	assert.IsType(t, &TextFormatter{}, l.Formatter)
}

func TestTextFormatterSortsFields(t *testing.T) {
	f := &TextFormatter{TimestampFormat: "15:04:05", DisableColors: true}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "Resolved symbol",
		Data:    logrus.Fields{"term": "SP500", "epic": "US500"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "12:00:00 INFO Resolved symbol | epic=US500 term=SP500\n", string(out))
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	var seen string
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		FromContext(r.Context(), l).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart?epic=US500", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"`+seen+`"`)
	assert.Contains(t, buf.String(), `"status":418`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", seen)
}
