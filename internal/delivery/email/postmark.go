package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	defaultPostmarkURL = "https://api.postmarkapp.com"
	maxBatchSize       = 500
)

// PostmarkMailer sends mail through the Postmark HTTP API.
type PostmarkMailer struct {
	serverToken string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

type Option func(*PostmarkMailer)

func WithHTTPClient(c *http.Client) Option {
	return func(m *PostmarkMailer) {
		m.httpClient = c
	}
}

func WithBaseURL(u string) Option {
	return func(m *PostmarkMailer) {
		if u != "" {
			m.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *PostmarkMailer) {
		m.logger = l
	}
}

func NewPostmarkMailer(serverToken string, opts ...Option) *PostmarkMailer {
	m := &PostmarkMailer{
		serverToken: serverToken,
		baseURL:     defaultPostmarkURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured returns true if the server token is set.
func (m *PostmarkMailer) Configured() bool {
	return m.serverToken != ""
}

type postmarkResult struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
	To        string `json:"To"`
}

// Send delivers msgs. Without a server token the messages are logged and dropped.
func (m *PostmarkMailer) Send(ctx context.Context, msgs []Message, isMultiple bool) error {
	if len(msgs) == 0 {
		return nil
	}
	if !m.Configured() {
		for _, msg := range msgs {
			m.logger.Info("email not sent: postmark not configured", "to", msg.To, "subject", msg.Subject)
		}
		return nil
	}

	if !isMultiple {
		var errs []error
		for _, msg := range msgs {
			var res postmarkResult
			if err := m.post(ctx, "/email", msg, &res); err != nil {
				errs = append(errs, fmt.Errorf("send to %s: %w", msg.To, err))
				continue
			}
			if res.ErrorCode != 0 {
				errs = append(errs, &RecipientError{To: msg.To, Code: res.ErrorCode, Message: res.Message})
			}
		}
		return errors.Join(errs...)
	}

	var errs []error
	for start := 0; start < len(msgs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(msgs))
		chunk := msgs[start:end]

		var results []postmarkResult
		if err := m.post(ctx, "/email/batch", chunk, &results); err != nil {
			for _, msg := range chunk {
				errs = append(errs, fmt.Errorf("send to %s: %w", msg.To, err))
			}
			continue
		}
		for i, res := range results {
			if res.ErrorCode == 0 {
				continue
			}
			to := res.To
			if to == "" && i < len(chunk) {
				to = chunk[i].To
			}
			errs = append(errs, &RecipientError{To: to, Code: res.ErrorCode, Message: res.Message})
		}
	}
	return errors.Join(errs...)
}

func (m *PostmarkMailer) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", m.serverToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// Postmark reports single-message rejections as 422 with a result body
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("postmark API error: status %d: %w", resp.StatusCode, err)
	}
	return nil
}
