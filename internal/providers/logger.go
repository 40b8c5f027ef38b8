package providers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/erg0nix/samtale/internal/core"
)

// PayloadLogger appends request and response payloads to a daily JSONL file
// for offline inspection of what was actually sent to a model endpoint.
type PayloadLogger struct {
	logDir       string
	logRequests  bool
	logResponses bool
	logger       *slog.Logger
}

type logEntry struct {
	Timestamp  string         `json:"timestamp"`
	RequestID  string         `json:"request_id"`
	Service    string         `json:"service"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	Response   string         `json:"response,omitempty"`
	Duration   string         `json:"duration,omitempty"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
}

func NewPayloadLogger(logDir string, logRequests, logResponses bool, logger *slog.Logger) *PayloadLogger {
	return &PayloadLogger{
		logDir:       logDir,
		logRequests:  logRequests,
		logResponses: logResponses,
		logger:       logger,
	}
}

func (l *PayloadLogger) LogRequest(requestID core.RequestID, service string, payload map[string]any) {
	if l == nil || !l.logRequests {
		return
	}

	l.writeLog(logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: string(requestID),
		Service:   service,
		Type:      "request",
		Payload:   payload,
	})
	l.logger.Debug("provider request", "request_id", requestID, "service", service)
}

func (l *PayloadLogger) LogResponse(requestID core.RequestID, service, response string, duration time.Duration) {
	if l == nil || !l.logResponses {
		return
	}

	l.writeLog(logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: string(requestID),
		Service:   service,
		Type:      "response",
		Response:  response,
		Duration:  duration.String(),
	})
}

func (l *PayloadLogger) LogError(requestID core.RequestID, service string, statusCode int, errorBody []byte) {
	if l == nil {
		return
	}

	l.writeLog(logEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  string(requestID),
		Service:    service,
		Type:       "error",
		StatusCode: statusCode,
		Error:      string(errorBody),
	})

	l.logger.Error("provider request failed",
		"request_id", requestID,
		"service", service,
		"status_code", statusCode,
		"error", string(errorBody),
	)
}

func (l *PayloadLogger) writeLog(entry logEntry) {
	if l.logDir == "" {
		return
	}

	_ = os.MkdirAll(l.logDir, 0o755)

	logFile := filepath.Join(l.logDir, fmt.Sprintf("provider_%s.jsonl", time.Now().Format("2006-01-02")))

	data, _ := json.Marshal(entry)
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(data)
	_, _ = f.WriteString("\n")
}
