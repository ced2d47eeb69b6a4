package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"commonwealth/internal/domain"
	"commonwealth/internal/domain/address"
	"commonwealth/internal/pkg/metrics"
)

// FanoutLockID is the Postgres advisory lock key serializing every fan-out.
const FanoutLockID int64 = 1001

// EmitRequest is one event to record and distribute.
type EmitRequest struct {
	Category         domain.Category
	ObjectID         string
	Data             domain.Payload
	Webhook          *domain.WebhookContent
	ExcludeAddresses []string
	IncludeAddresses []string
}

// DeliveryResult is the outcome of one delivery channel for one notification.
type DeliveryResult struct {
	Channel string
	Err     error
	Elapsed time.Duration
}

// Dispatchers are the delivery channels triggered after a fan-out commits.
// Nil channels are skipped.
type Dispatchers struct {
	Email    EmailDispatcher
	Webhooks WebhookDispatcher
	Realtime RealtimeDispatcher
}

// Engine records notifications, allocates per-user read rows and hands the
// result to the delivery channels.
type Engine struct {
	db          *gorm.DB
	store       *Store
	filters     FilterBuilder
	dispatchers Dispatchers
	metrics     *metrics.Recorder
	logger      *slog.Logger

	// advisory locks only exist on Postgres; other dialects serialize here
	advisory bool
	mu       sync.Mutex

	slots    chan struct{}
	inflight sync.WaitGroup

	onDelivered func(*domain.Notification, []DeliveryResult)
}

type EngineConfig struct {
	// MaxConcurrentDeliveries bounds how many notifications deliver at once.
	MaxConcurrentDeliveries int
	// OnDelivered, when set, receives every notification's channel results
	// once all of its deliveries finished.
	OnDelivered func(*domain.Notification, []DeliveryResult)
}

func NewEngine(
	db *gorm.DB,
	store *Store,
	filters FilterBuilder,
	dispatchers Dispatchers,
	rec *metrics.Recorder,
	logger *slog.Logger,
	cfg EngineConfig,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentDeliveries <= 0 {
		cfg.MaxConcurrentDeliveries = 64
	}
	return &Engine{
		db:          db,
		store:       store,
		filters:     filters,
		dispatchers: dispatchers,
		metrics:     rec,
		logger:      logger,
		advisory:    db.Dialector.Name() == "postgres",
		slots:       make(chan struct{}, cfg.MaxConcurrentDeliveries),
		onDelivered: cfg.OnDelivered,
	}
}

// Emit records the event, creates one read row per effective subscriber and
// starts delivery in the background. Delivery outcomes never affect the
// returned error.
func (e *Engine) Emit(ctx context.Context, req EmitRequest) (*domain.Notification, error) {
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}
	if strings.TrimSpace(req.ObjectID) == "" {
		return nil, ErrMissingObjectID
	}
	if req.Data == nil {
		return nil, ErrInvalidPayload
	}

	log := e.logger.With(
		"category", string(req.Category),
		"community", req.Data.CommunityID(),
		"object_id", req.ObjectID,
	)

	n, err := e.store.GetOrCreate(ctx, req.Category, req.Data)
	if err != nil {
		log.Error("notification store failed", "error", err)
		return nil, err
	}
	log = log.With("notification_id", n.ID)

	filter, err := e.filters.BuildFilter(ctx, req.ExcludeAddresses, req.IncludeAddresses)
	if err != nil {
		log.Error("address filter failed", "error", err)
		return nil, fmt.Errorf("resolve address filter: %w", err)
	}

	var recipients []domain.Recipient
	err = e.metrics.Time(metrics.StageFanout, func() error {
		var ferr error
		recipients, ferr = e.fanOut(ctx, n.ID, req.Category, req.ObjectID, filter)
		return ferr
	})
	if err != nil {
		log.Error("fan-out failed", "error", err)
		return nil, fmt.Errorf("fan out notification %d: %w", n.ID, err)
	}
	log.Debug("fan-out committed", "recipients", len(recipients))

	e.deliver(ctx, n, req, recipients, log)
	return n, nil
}

// Wait blocks until every delivery started so far has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

type fanoutTarget struct {
	SubscriptionID int64
	UserID         int64
	ImmediateEmail bool
	MaxNotifOffset int64
}

func (e *Engine) fanOut(ctx context.Context, notificationID int64, category domain.Category, objectID string, filter address.Filter) ([]domain.Recipient, error) {
	if filter.Mode == address.FilterInclude && len(filter.UserIDs) == 0 {
		return nil, nil
	}

	if !e.advisory {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	var recipients []domain.Recipient
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.advisory {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", FanoutLockID).Error; err != nil {
				return fmt.Errorf("advisory lock: %w", err)
			}
		}

		targets, err := selectTargets(tx, notificationID, category, objectID, filter)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}

		reads := make([]domain.NotificationRead, 0, len(targets))
		recipients = make([]domain.Recipient, 0, len(targets))
		for _, t := range targets {
			offset := t.MaxNotifOffset + 1
			reads = append(reads, domain.NotificationRead{
				UserID:         t.UserID,
				ID:             offset,
				NotificationID: notificationID,
				SubscriptionID: t.SubscriptionID,
			})
			recipients = append(recipients, domain.Recipient{
				UserID:         t.UserID,
				SubscriptionID: t.SubscriptionID,
				Offset:         offset,
				ImmediateEmail: t.ImmediateEmail,
			})
		}

		if err := tx.CreateInBatches(reads, 500).Error; err != nil {
			return fmt.Errorf("insert read rows: %w", err)
		}

		for _, r := range recipients {
			if err := tx.Model(&domain.User{}).
				Where("id = ?", r.UserID).
				Update("max_notif_offset", r.Offset).Error; err != nil {
				return fmt.Errorf("advance offset of user %d: %w", r.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recipients, nil
}

// selectTargets ranks the matching active subscriptions per subscriber,
// newest first, and keeps one per user. Users who already hold a read row
// for this notification are skipped so a replayed emit only reaches
// subscribers added since.
func selectTargets(tx *gorm.DB, notificationID int64, category domain.Category, objectID string, filter address.Filter) ([]fanoutTarget, error) {
	var sb strings.Builder
	args := []any{category, objectID, true}

	sb.WriteString(`SELECT ranked.id AS subscription_id, ranked.subscriber_id AS user_id,
       ranked.immediate_email AS immediate_email, u.max_notif_offset AS max_notif_offset
FROM (
    SELECT s.id, s.subscriber_id, s.immediate_email,
           ROW_NUMBER() OVER (PARTITION BY s.subscriber_id ORDER BY s.id DESC) AS rn
    FROM subscriptions s
    WHERE s.category_id = ? AND s.object_id = ? AND s.is_active = ?`)

	switch {
	case filter.Mode == address.FilterExclude && len(filter.UserIDs) > 0:
		sb.WriteString(" AND s.subscriber_id NOT IN ?")
		args = append(args, filter.UserIDs)
	case filter.Mode == address.FilterInclude:
		sb.WriteString(" AND s.subscriber_id IN ?")
		args = append(args, filter.UserIDs)
	}

	sb.WriteString(`
      AND NOT EXISTS (
          SELECT 1 FROM notifications_read nr
          WHERE nr.notification_id = ? AND nr.user_id = s.subscriber_id
      )
) ranked
JOIN users u ON u.id = ranked.subscriber_id
WHERE ranked.rn = 1
ORDER BY ranked.subscriber_id ASC`)
	args = append(args, notificationID)

	var targets []fanoutTarget
	if err := tx.Raw(sb.String(), args...).Scan(&targets).Error; err != nil {
		return nil, fmt.Errorf("select fan-out targets: %w", err)
	}
	return targets, nil
}

type deliveryTask struct {
	channel string
	run     func(context.Context) error
}

func (e *Engine) deliver(ctx context.Context, n *domain.Notification, req EmitRequest, recipients []domain.Recipient, log *slog.Logger) {
	var tasks []deliveryTask
	if e.dispatchers.Email != nil && len(recipients) > 0 {
		tasks = append(tasks, deliveryTask{metrics.StageEmailImmediate, func(ctx context.Context) error {
			return e.dispatchers.Email.DispatchImmediate(ctx, n, recipients)
		}})
	}
	if e.dispatchers.Webhooks != nil {
		var content domain.WebhookContent
		if req.Webhook != nil {
			content = *req.Webhook
		}
		tasks = append(tasks, deliveryTask{metrics.StageWebhook, func(ctx context.Context) error {
			return e.dispatchers.Webhooks.Dispatch(ctx, n, content)
		}})
	}
	if e.dispatchers.Realtime != nil && len(recipients) > 0 {
		tasks = append(tasks, deliveryTask{metrics.StageRealtime, func(ctx context.Context) error {
			return e.dispatchers.Realtime.Publish(ctx, n, recipients)
		}})
	}
	if len(tasks) == 0 {
		return
	}

	// deliveries outlive the producer's request
	ctx = context.WithoutCancel(ctx)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		e.slots <- struct{}{}
		defer func() { <-e.slots }()

		results := make([]DeliveryResult, len(tasks))
		var wg sync.WaitGroup
		for i, task := range tasks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = e.runTask(ctx, task, log)
			}()
		}
		wg.Wait()

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		log.Info("notification delivered", "channels", len(results), "failed_channels", failed)

		if e.onDelivered != nil {
			e.onDelivered(n, results)
		}
	}()
}

func (e *Engine) runTask(ctx context.Context, task deliveryTask, log *slog.Logger) (res DeliveryResult) {
	res.Channel = task.channel
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("panic: %v", rec)
			log.Error("delivery panicked", "channel", task.channel, "panic", rec)
		}
		res.Elapsed = time.Since(start)
	}()

	res.Err = e.metrics.Time(task.channel, func() error {
		return task.run(ctx)
	})
	if res.Err != nil {
		log.Warn("delivery failed", "channel", task.channel, "error", res.Err)
	}
	return res
}
