// Package audit writes an append-only, human-readable record of API
// requests, responses, and raw model interactions so assessment quality
// can be reviewed after the fact. All methods are safe on a nil *Log,
// which is how auditing is disabled.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const separator = "================================================================================"

// Log is a mutex-guarded append-only audit file.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open creates or opens the audit log at path, writing a header when the
// file is new.
func Open(path string) (*Log, error) {
	l := &Log{path: path}
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return l, nil
	}
	header := fmt.Sprintf("%s\nSecurity Radar API - Request/Response Log\nLog started: %s\n%s\n\n",
		separator, time.Now().UTC().Format(time.RFC3339), separator)
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return l, nil
}

// Request records an inbound API call and returns the request id used to
// correlate the eventual response.
func (l *Log) Request(endpoint, method string, body any) string {
	id := "req_" + uuid.NewString()
	if l == nil {
		return id
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s\nREQUEST - %s\n%s\n", separator, id, separator)
	fmt.Fprintf(&sb, "Timestamp: %s\nEndpoint:  %s\nMethod:    %s\n\n", time.Now().UTC().Format(time.RFC3339), endpoint, method)
	sb.WriteString("Request Data:\n")
	sb.WriteString(formatBody(body))
	sb.WriteString("\n")
	l.append(sb.String())
	return id
}

// Response records the outcome of a previously logged request.
func (l *Log) Response(requestID string, status int, body any, duration time.Duration, errMsg string) {
	if l == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "RESPONSE - %s\n", requestID)
	fmt.Fprintf(&sb, "Timestamp:    %s\nStatus Code:  %d\nDuration:     %s\n",
		time.Now().UTC().Format(time.RFC3339), status, duration.Round(time.Millisecond))
	if errMsg != "" {
		fmt.Fprintf(&sb, "Error:        %s\n", errMsg)
	}
	sb.WriteString("\nResponse Data:\n")
	sb.WriteString(formatBody(body))
	sb.WriteString("\n" + separator + "\n")
	l.append(sb.String())
}

// LLMInteraction records the raw prompt and reply of one model call.
func (l *Log) LLMInteraction(requestID, model, prompt, response string, duration time.Duration) {
	if l == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nLLM INTERACTION - %s\n", requestID)
	fmt.Fprintf(&sb, "Timestamp: %s\nModel:     %s\nDuration:  %s\n",
		time.Now().UTC().Format(time.RFC3339), model, duration.Round(time.Millisecond))
	sb.WriteString("\n--- PROMPT START ---\n")
	sb.WriteString(strings.TrimSpace(prompt))
	sb.WriteString("\n--- PROMPT END ---\n\n--- LLM RESPONSE START ---\n")
	sb.WriteString(strings.TrimSpace(response))
	sb.WriteString("\n--- LLM RESPONSE END ---\n")
	l.append(sb.String())
}

// Stats describes the audit file.
type Stats struct {
	Path          string `json:"path"`
	SizeBytes     int64  `json:"size_bytes"`
	TotalRequests int    `json:"total_requests"`
}

// Stats counts logged requests and reports file size.
func (l *Log) Stats() (Stats, error) {
	if l == nil {
		return Stats{}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	info, err := os.Stat(l.path)
	if err != nil {
		return Stats{}, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Stats{}, err
	}
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "REQUEST - req_") {
			count++
		}
	}
	return Stats{Path: l.path, SizeBytes: info.Size(), TotalRequests: count}, nil
}

func (l *Log) append(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(s)
}

func formatBody(body any) string {
	if body == nil {
		return "<empty>"
	}
	if raw, ok := body.([]byte); ok {
		return string(raw)
	}
	b, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Sprintf("<error formatting data: %v>", err)
	}
	return string(b)
}

type ctxKey struct{}

// WithRequestID stores the audit request id on the context so deeper
// layers (the assessor) can correlate model calls with API requests.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFrom returns the correlation id, or a fresh one when the
// request was never logged.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return "req_" + uuid.NewString()
}
