package domain

import "time"

// Notification is the canonical record of one event. Chain events are unique
// per ChainEventID, everything else per exact NotificationData.
type Notification struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	NotificationData string    `json:"notification_data" gorm:"column:notification_data;type:text;not null"`
	CategoryID       Category  `json:"category_id" gorm:"column:category_id;size:64;not null;index"`
	ChainID          *string   `json:"chain_id,omitempty" gorm:"column:chain_id;size:255;index"`
	ChainEventID     *int64    `json:"chain_event_id,omitempty" gorm:"column:chain_event_id;uniqueIndex"`
	ThreadID         *int64    `json:"thread_id,omitempty" gorm:"column:thread_id"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Payload decodes NotificationData into the variant its category implies.
func (n *Notification) Payload() (Payload, error) {
	return DecodePayload(n.CategoryID, []byte(n.NotificationData))
}

// Community returns the chain/community id or "" when the notification has none.
func (n *Notification) Community() string {
	if n.ChainID == nil {
		return ""
	}
	return *n.ChainID
}

// NotificationRead is the per-user delivery state of a notification. ID is the
// user's own offset and only ever grows for a given UserID.
type NotificationRead struct {
	UserID         int64 `json:"user_id" gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ID             int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	NotificationID int64 `json:"notification_id" gorm:"column:notification_id;not null;uniqueIndex:idx_notifications_read_pair;index"`
	SubscriptionID int64 `json:"subscription_id" gorm:"column:subscription_id;not null;uniqueIndex:idx_notifications_read_pair"`
	IsRead         bool  `json:"is_read" gorm:"column:is_read;not null"`
}

func (NotificationRead) TableName() string {
	return "notifications_read"
}

// WebhookContent is the optional producer-supplied rendering hint for webhook
// targets. Missing fields are derived from the notification itself.
type WebhookContent struct {
	Title               string `json:"title,omitempty"`
	Body                string `json:"body,omitempty"`
	URL                 string `json:"url,omitempty"`
	AuthorName          string `json:"author_name,omitempty"`
	AuthorURL           string `json:"author_url,omitempty"`
	PreviewImageURL     string `json:"preview_image_url,omitempty"`
	PreviewImageAltText string `json:"preview_image_alt_text,omitempty"`
}

// Recipient is one subscriber reached by a fan-out, with the offset assigned
// to their new read row.
type Recipient struct {
	UserID         int64
	SubscriptionID int64
	Offset         int64
	ImmediateEmail bool
}
