package logger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/chart-proxy/pkg/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id in and out of the proxy
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// New creates a new logger instance
func New(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		logger.SetFormatter(&TextFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	}

	output, err := getOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to set output: %w", err)
	}
	logger.SetOutput(output)
	logger.SetReportCaller(true)

	return logger, nil
}

// TextFormatter renders colored single-line entries with fields sorted by key
type TextFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format renders a single log entry
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	b.WriteString(f.paint("\033[90m", entry.Time.Format(f.TimestampFormat)))
	b.WriteByte(' ')
	b.WriteString(f.paint(levelColor(entry.Level), strings.ToUpper(entry.Level.String())))
	if entry.HasCaller() {
		fmt.Fprintf(&b, " [%s]", formatCaller(entry.Caller))
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
	}
	b.WriteByte('\n')

	return []byte(b.String()), nil
}

func (f *TextFormatter) paint(color, s string) string {
	if f.DisableColors {
		return s
	}
	return color + s + "\033[0m"
}

func levelColor(level logrus.Level) string {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "\033[36m"
	case logrus.InfoLevel:
		return "\033[32m"
	case logrus.WarnLevel:
		return "\033[33m"
	case logrus.ErrorLevel:
		return "\033[31m"
	default:
		return "\033[35m"
	}
}

func formatCaller(caller *runtime.Frame) string {
	_, file := filepath.Split(caller.File)

	funcName := caller.Function
	if idx := strings.LastIndex(funcName, "."); idx >= 0 {
		funcName = funcName[idx+1:]
	}

	return fmt.Sprintf("%s:%d %s", file, caller.Line, funcName)
}

func getOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		return file, nil
	}
}

// RequestID returns the request id stored in ctx, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns an entry tagged with the request id in ctx, if any
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(logger)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

// Middleware assigns every request an id, echoes it in the response headers
// and logs the request when it completes. An incoming X-Request-ID is reused.
func Middleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			entry := logger.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"query":      r.URL.RawQuery,
				"status":     wrapped.statusCode,
				"duration":   time.Since(start).Milliseconds(),
				"ip":         r.RemoteAddr,
			})
			if wrapped.statusCode >= http.StatusInternalServerError {
				entry.Warn("HTTP request failed")
			} else {
				entry.Info("HTTP request")
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
