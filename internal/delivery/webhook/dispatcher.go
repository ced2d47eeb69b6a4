// Package webhook posts notifications to the chat integrations communities
// configure: Slack, Discord, Telegram and Zapier.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"commonwealth/internal/delivery"
	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/metrics"
	"commonwealth/internal/pkg/richtext"
	"commonwealth/internal/pkg/validator"
)

const defaultAltText = "Commonwealth"

type WebhookFinder interface {
	ListForCategory(ctx context.Context, communityID string, category domain.Category) ([]domain.Webhook, error)
}

type AuthorDirectory interface {
	DisplayName(ctx context.Context, address, communityID string) (string, error)
}

type Config struct {
	// Production enables posting to every target; otherwise only FeedbackURL is posted.
	Production       bool
	FeedbackURL      string
	DefaultLogoURL   string
	ServerURL        string
	TelegramBotToken string
	Timeout          time.Duration
}

type Deps struct {
	Webhooks    WebhookFinder
	Communities *delivery.Communities
	Authors     AuthorDirectory
	Labeler     delivery.ChainEventLabeler
	HTTPClient  *http.Client
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
}

type Dispatcher struct {
	cfg         Config
	webhooks    WebhookFinder
	communities *delivery.Communities
	authors     AuthorDirectory
	labeler     delivery.ChainEventLabeler
	client      *http.Client
	metrics     *metrics.Recorder
	logger      *slog.Logger
}

func NewDispatcher(cfg Config, deps Deps) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Labeler == nil {
		deps.Labeler = delivery.KindLabeler{}
	}
	return &Dispatcher{
		cfg:         cfg,
		webhooks:    deps.Webhooks,
		communities: deps.Communities,
		authors:     deps.Authors,
		labeler:     deps.Labeler,
		client:      deps.HTTPClient,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("channel", "webhook"),
	}
}

// Dispatch posts n to every webhook of its community subscribed to its
// category. Targets fail independently; their errors are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification, content domain.WebhookContent) error {
	communityID := n.Community()
	if communityID == "" {
		return nil
	}
	log := d.logger.With("notification_id", n.ID, "category", string(n.CategoryID), "community", communityID)

	hooks, err := d.webhooks.ListForCategory(ctx, communityID, n.CategoryID)
	if err != nil {
		return fmt.Errorf("list webhooks: %w", err)
	}

	targets := make([]string, 0, len(hooks))
	for _, h := range hooks {
		if !validator.IsHTTPURL(h.URL) {
			log.Warn("skipping invalid webhook url", "webhook_id", h.ID, "url", h.URL)
			continue
		}
		targets = append(targets, h.URL)
	}
	if len(targets) == 0 {
		return nil
	}

	card, err := d.card(ctx, n, content)
	if err != nil {
		return fmt.Errorf("render webhook card: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.send(ctx, target, card, log); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		d.metrics.DeliveryFailures(metrics.StageWebhook, len(errs))
		log.Warn("webhook delivery partially failed", "failed", len(errs), "total", len(targets))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, target string, card Card, log *slog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("webhook %s: panic: %v", target, rec)
		}
	}()

	p, ok := platformFor(target)
	if !ok {
		log.Warn("unsupported webhook platform", "url", target)
		return nil
	}
	if !d.cfg.Production && target != d.cfg.FeedbackURL {
		log.Info("webhook suppressed outside production", "platform", p.name, "url", target)
		return nil
	}

	endpoint, body, err := p.build(d, target, card)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", target, err)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("webhook %s: marshal: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("webhook %s: create request: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: %s returned status %d", target, p.name, resp.StatusCode)
	}
	log.Debug("webhook delivered", "platform", p.name)
	return nil
}

// card fills whatever the producer left out of content from the notification.
func (d *Dispatcher) card(ctx context.Context, n *domain.Notification, content domain.WebhookContent) (Card, error) {
	community, err := d.communities.Get(ctx, n.Community())
	if err != nil {
		return Card{}, err
	}

	c := Card{
		Title:               content.Title,
		Body:                content.Body,
		URL:                 content.URL,
		AuthorName:          content.AuthorName,
		AuthorURL:           content.AuthorURL,
		PreviewImageURL:     content.PreviewImageURL,
		PreviewImageAltText: content.PreviewImageAltText,
		Community:           community.Name,
		Category:            string(n.CategoryID),
	}

	rawBody := content.Body
	p, err := n.Payload()
	if err != nil {
		return Card{}, err
	}
	switch data := p.(type) {
	case *domain.PostData:
		if c.Title == "" {
			c.Title = strings.TrimSpace(richtext.Decode(data.RootTitle))
		}
		if rawBody == "" {
			rawBody = data.CommentText
		}
		if c.URL == "" {
			c.URL = d.postURL(data)
		}
		if c.AuthorName == "" && data.AuthorAddress != "" {
			authorCommunity := data.AuthorChain
			if authorCommunity == "" {
				authorCommunity = data.ChainID
			}
			name, err := d.authors.DisplayName(ctx, data.AuthorAddress, authorCommunity)
			if err != nil {
				return Card{}, fmt.Errorf("resolve author: %w", err)
			}
			c.AuthorName = name
		}
		if c.AuthorURL == "" && data.AuthorAddress != "" {
			c.AuthorURL = fmt.Sprintf("%s/%s/account/%s", d.cfg.ServerURL, data.AuthorChain, data.AuthorAddress)
		}
	case *domain.ChainEventData:
		label := d.labeler.Label(data.Chain, data)
		if c.Title == "" {
			c.Title = label.Heading
		}
		if c.Body == "" {
			c.Body = label.Label
		}
		if c.URL == "" {
			c.URL = label.LinkURL
		}
	case *domain.SnapshotData:
		if c.Title == "" {
			c.Title = data.Title
		}
		if rawBody == "" {
			rawBody = data.Body
		}
		if c.URL == "" {
			c.URL = fmt.Sprintf("%s/%s/snapshot/%s/%s", d.cfg.ServerURL, data.ChainID, data.Space, data.ID)
		}
	}

	if c.Body == "" && rawBody != "" {
		c.Body = richtext.Excerpt(rawBody, richtext.ExcerptLength)
	}
	if c.URL == "" {
		c.URL = d.cfg.ServerURL + "/" + n.Community()
	}
	if c.Title == "" {
		c.Title = "New activity on " + community.Name
	}

	if c.PreviewImageURL == "" {
		c.PreviewImageURL = previewImage(rawBody, community, d.cfg.DefaultLogoURL)
	}
	if c.PreviewImageAltText == "" {
		c.PreviewImageAltText = defaultAltText
	}
	return c, nil
}

// previewImage picks the first image in the body, then the community icon,
// then the default logo.
func previewImage(body string, community *domain.Community, fallback string) string {
	if u, ok := richtext.FirstImageURL(body); ok {
		return u
	}
	if community != nil && community.IconURL != "" {
		return community.IconURL
	}
	return fallback
}

func (d *Dispatcher) postURL(p *domain.PostData) string {
	threadID, ok := p.ThreadID()
	if !ok {
		return d.cfg.ServerURL + "/" + p.ChainID
	}
	u := fmt.Sprintf("%s/%s/discussion/%d", d.cfg.ServerURL, p.ChainID, threadID)
	if p.CommentID != nil {
		u += fmt.Sprintf("?comment=%d", *p.CommentID)
	}
	return u
}
