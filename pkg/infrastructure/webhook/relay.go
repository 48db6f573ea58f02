// Package webhook forwards JSON payloads to the configured notification sink.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrRelayUnreachable is returned when the sink cannot be reached at all.
var ErrRelayUnreachable = errors.New("webhook sink unreachable")

// Response is the sink's answer, passed back verbatim.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Relay posts bodies to one fixed sink URL.
type Relay struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewRelay creates a relay. A nil client uses http.DefaultClient.
func NewRelay(url string, client *http.Client, logger *slog.Logger) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		url:    url,
		client: client,
		logger: logger.With("svc", "webhook.Relay"),
	}
}

// URL returns the sink address.
func (r *Relay) URL() string {
	return r.url
}

// Forward sends body unmodified. Any HTTP status is a successful relay; only
// transport failures are errors.
func (r *Relay) Forward(ctx context.Context, body []byte) (*Response, error) {
	if r.url == "" {
		return nil, fmt.Errorf("%w: no sink url configured", ErrRelayUnreachable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRelayUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("webhook relay failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRelayUnreachable, err)
	}

	r.logger.Debug("webhook relayed", "status", resp.StatusCode, "bytes", len(body))
	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Handler mirrors the sink's status and body back to the caller.
func (r *Relay) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		resp, err := r.Forward(req.Context(), body)
		if err != nil {
			writeError(w, http.StatusBadGateway, "Failed to reach webhook")
			return
		}

		contentType := resp.ContentType
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "{%q:%q}", "error", msg)
}
