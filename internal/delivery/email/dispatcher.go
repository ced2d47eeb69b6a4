// Package email renders notifications into messages and sends them either
// immediately after a fan-out or batched into daily and weekly digests.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"commonwealth/internal/delivery"
	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/metrics"
	"commonwealth/internal/repository"
)

const (
	lockNamespace         = "digest"
	defaultDigestPageSize = 500
)

var ErrUnsupportedInterval = errors.New("unsupported digest interval")

type UserDirectory interface {
	EmailsByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
	ListByInterval(ctx context.Context, interval domain.EmailInterval, afterID int64, limit int) ([]domain.User, error)
}

type AuthorDirectory interface {
	DisplayName(ctx context.Context, address, communityID string) (string, error)
}

type DigestSource interface {
	DigestItems(ctx context.Context, userIDs []int64, since time.Time) ([]repository.DigestItem, error)
}

type Locker interface {
	SetKey(ctx context.Context, namespace, key, value string, ttl time.Duration, onlyIfAbsent bool) (bool, error)
}

type Config struct {
	From           string
	ServerURL      string
	DigestPageSize int
}

type Deps struct {
	Mailer      Mailer
	Users       UserDirectory
	Authors     AuthorDirectory
	Communities *delivery.Communities
	Labeler     delivery.ChainEventLabeler
	Digests     DigestSource
	Locker      Locker
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
}

type Dispatcher struct {
	cfg      Config
	mailer   Mailer
	users    UserDirectory
	digests  DigestSource
	locker   Locker
	metrics  *metrics.Recorder
	logger   *slog.Logger
	renderer *renderer
	now      func() time.Time
}

func NewDispatcher(cfg Config, deps Deps) *Dispatcher {
	if cfg.DigestPageSize <= 0 {
		cfg.DigestPageSize = defaultDigestPageSize
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Labeler == nil {
		deps.Labeler = delivery.KindLabeler{}
	}
	return &Dispatcher{
		cfg:     cfg,
		mailer:  deps.Mailer,
		users:   deps.Users,
		digests: deps.Digests,
		locker:  deps.Locker,
		metrics: deps.Metrics,
		logger:  deps.Logger.With("channel", "email"),
		renderer: &renderer{
			communities: deps.Communities,
			authors:     deps.Authors,
			labeler:     deps.Labeler,
			serverURL:   cfg.ServerURL,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DispatchImmediate emails the recipients that asked for immediate email.
// Recipients fail independently; their errors are joined.
func (d *Dispatcher) DispatchImmediate(ctx context.Context, n *domain.Notification, recipients []domain.Recipient) error {
	ids := make([]int64, 0, len(recipients))
	for _, r := range recipients {
		if r.ImmediateEmail {
			ids = append(ids, r.UserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	log := d.logger.With("notification_id", n.ID, "category", string(n.CategoryID))

	content, err := d.renderer.render(ctx, n)
	switch {
	case errors.Is(err, ErrUnsupportedCategory):
		log.Info("immediate email not supported for category")
		return nil
	case errors.Is(err, errNoHeading):
		log.Debug("chain event has no label, skipping email")
		return nil
	case err != nil:
		return fmt.Errorf("render notification %d: %w", n.ID, err)
	}

	text, html, err := immediateBodies(content)
	if err != nil {
		return err
	}

	emails, err := d.users.EmailsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load recipient emails: %w", err)
	}

	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		addr, ok := emails[id]
		if !ok {
			continue
		}
		msgs = append(msgs, Message{
			From:     d.cfg.From,
			To:       addr,
			Subject:  content.Subject,
			TextBody: text,
			HTMLBody: html,
			Tag:      string(n.CategoryID),
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := d.mailer.Send(ctx, msgs, true); err != nil {
		failed := failureCount(err)
		d.metrics.DeliveryFailures(metrics.StageEmailImmediate, failed)
		log.Warn("immediate email partially failed", "failed", failed, "total", len(msgs), "error", err)
		return err
	}
	log.Debug("immediate email sent", "recipients", len(msgs))
	return nil
}

// DigestReport summarises one digest run.
type DigestReport struct {
	Interval     domain.EmailInterval `json:"interval"`
	Skipped      bool                 `json:"skipped"`
	UsersScanned int                  `json:"users_scanned"`
	EmailsSent   int                  `json:"emails_sent"`
	Failed       int                  `json:"failed"`
}

// digestWindow returns how far back a digest looks and how long its lock is held.
func digestWindow(interval domain.EmailInterval) (window, ttl time.Duration, err error) {
	switch interval {
	case domain.IntervalDaily:
		return 24 * time.Hour, 23*time.Hour + 54*time.Minute, nil
	case domain.IntervalWeekly:
		return 7 * 24 * time.Hour, 7*24*time.Hour - 10*time.Minute, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, interval)
	}
}

// DispatchDigest sends one summary email per user of the interval that has
// notifications in the window. Only one process runs a given interval per
// window; the others return a skipped report.
func (d *Dispatcher) DispatchDigest(ctx context.Context, interval domain.EmailInterval) (DigestReport, error) {
	report := DigestReport{Interval: interval}

	window, ttl, err := digestWindow(interval)
	if err != nil {
		return report, err
	}

	err = d.metrics.Time(metrics.StageEmailDigest, func() error {
		acquired, err := d.locker.SetKey(ctx, lockNamespace, string(interval), uuid.NewString(), ttl, true)
		if err != nil {
			return fmt.Errorf("acquire digest lock: %w", err)
		}
		if !acquired {
			report.Skipped = true
			return nil
		}
		return d.runDigest(ctx, interval, d.now().Add(-window), &report)
	})

	log := d.logger.With("interval", string(interval))
	switch {
	case err != nil:
		log.Error("digest failed", "error", err, "sent", report.EmailsSent)
	case report.Skipped:
		log.Info("digest already claimed by another worker")
	default:
		log.Info("digest finished",
			"users", report.UsersScanned,
			"sent", report.EmailsSent,
			"failed", report.Failed,
		)
	}
	return report, err
}

func (d *Dispatcher) runDigest(ctx context.Context, interval domain.EmailInterval, since time.Time, report *DigestReport) error {
	var afterID int64
	for {
		users, err := d.users.ListByInterval(ctx, interval, afterID, d.cfg.DigestPageSize)
		if err != nil {
			return fmt.Errorf("list %s users: %w", interval, err)
		}
		if len(users) == 0 {
			return nil
		}
		report.UsersScanned += len(users)

		if err := d.digestPage(ctx, users, since, report); err != nil {
			return err
		}

		afterID = users[len(users)-1].ID
		if len(users) < d.cfg.DigestPageSize {
			return nil
		}
	}
}

func (d *Dispatcher) digestPage(ctx context.Context, users []domain.User, since time.Time, report *DigestReport) error {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	items, err := d.digests.DigestItems(ctx, ids, since)
	if err != nil {
		return fmt.Errorf("load digest items: %w", err)
	}

	perUser := make(map[int64][]Content, len(users))
	rendered := make(map[int64]Content)
	for _, it := range items {
		c, ok := rendered[it.NotificationID]
		if !ok {
			c = d.digestLine(ctx, it)
			rendered[it.NotificationID] = c
		}
		if c.Summary == "" {
			continue
		}
		perUser[it.UserID] = append(perUser[it.UserID], c)
	}

	var msgs []Message
	for _, u := range users {
		lines := perUser[u.ID]
		if len(lines) == 0 {
			continue
		}
		text, html, err := digestBodies(lines)
		if err != nil {
			return err
		}
		msgs = append(msgs, Message{
			From:     d.cfg.From,
			To:       u.Email,
			Subject:  digestSubject(len(lines)),
			TextBody: text,
			HTMLBody: html,
			Tag:      "digest",
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := d.mailer.Send(ctx, msgs, true); err != nil {
		failed := failureCount(err)
		report.Failed += failed
		report.EmailsSent += len(msgs) - failed
		d.metrics.DeliveryFailures(metrics.StageEmailDigest, failed)
		d.logger.Warn("digest batch partially failed", "failed", failed, "total", len(msgs), "error", err)
		return nil
	}
	report.EmailsSent += len(msgs)
	return nil
}

// digestLine renders one notification for a digest. Notifications that cannot
// be rendered still count, with a generic line.
func (d *Dispatcher) digestLine(ctx context.Context, it repository.DigestItem) Content {
	c, err := d.renderer.render(ctx, it.Notification())
	switch {
	case errors.Is(err, errNoHeading):
		return Content{}
	case err != nil:
		d.logger.Debug("digest line fallback", "notification_id", it.NotificationID, "error", err)
		return Content{Summary: fmt.Sprintf("New %s notification", it.CategoryID)}
	}
	return c
}
