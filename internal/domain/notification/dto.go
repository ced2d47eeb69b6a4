package notification

import (
	"time"

	json "github.com/goccy/go-json"

	"commonwealth/internal/domain"
)

// NotificationResponse is one read row as returned to its owner. ID is the
// per-user offset, usable as the after_id cursor.
type NotificationResponse struct {
	ID               int64           `json:"id"`
	NotificationID   int64           `json:"notification_id"`
	SubscriptionID   int64           `json:"subscription_id"`
	IsRead           bool            `json:"is_read"`
	CategoryID       string          `json:"category_id"`
	ChainID          *string         `json:"chain_id,omitempty"`
	ThreadID         *int64          `json:"thread_id,omitempty"`
	NotificationData json.RawMessage `json:"notification_data"`
	CreatedAt        string          `json:"created_at"`
}

func NotificationResponseFromItem(it ReadItem) *NotificationResponse {
	resp := &NotificationResponse{
		ID:             it.ReadOffset,
		NotificationID: it.NotificationID,
		SubscriptionID: it.SubscriptionID,
		IsRead:         it.IsRead,
		CategoryID:     string(it.CategoryID),
		ChainID:        it.ChainID,
		ThreadID:       it.ThreadID,
		CreatedAt:      it.CreatedAt.UTC().Format(time.RFC3339),
	}
	if json.Valid([]byte(it.NotificationData)) {
		resp.NotificationData = json.RawMessage(it.NotificationData)
	} else {
		quoted, _ := json.Marshal(it.NotificationData)
		resp.NotificationData = quoted
	}
	return resp
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	UnreadCount   int64                   `json:"unread_count"`
	NextAfterID   int64                   `json:"next_after_id"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// EmitNotificationRequest is the producer-facing body of POST /internal/notifications/emit.
type EmitNotificationRequest struct {
	CategoryID       string                 `json:"category_id" binding:"required"`
	ObjectID         string                 `json:"object_id" binding:"required"`
	NotificationData json.RawMessage        `json:"notification_data" binding:"required"`
	WebhookData      *domain.WebhookContent `json:"webhook_data,omitempty"`
	ExcludeAddresses []string               `json:"exclude_addresses,omitempty"`
	IncludeAddresses []string               `json:"include_addresses,omitempty"`
}

// ToEmitRequest decodes notification_data into the payload variant the category implies.
func (r *EmitNotificationRequest) ToEmitRequest() (EmitRequest, error) {
	category := domain.Category(r.CategoryID)
	if !category.Valid() {
		return EmitRequest{}, ErrInvalidCategory
	}
	payload, err := domain.DecodePayload(category, r.NotificationData)
	if err != nil {
		return EmitRequest{}, err
	}
	return EmitRequest{
		Category:         category,
		ObjectID:         r.ObjectID,
		Data:             payload,
		Webhook:          r.WebhookData,
		ExcludeAddresses: r.ExcludeAddresses,
		IncludeAddresses: r.IncludeAddresses,
	}, nil
}

type EmitNotificationResponse struct {
	Notification *domain.Notification `json:"notification"`
}
