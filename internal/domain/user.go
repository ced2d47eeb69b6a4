package domain

import (
	"strings"
	"time"
)

// User carries only what the notification engine reads: the email address,
// the digest preference and the per-user offset cursor.
type User struct {
	ID                        int64         `json:"id" gorm:"primaryKey"`
	Email                     string        `json:"email" gorm:"size:255;index"`
	MaxNotifOffset            int64         `json:"max_notif_offset" gorm:"column:max_notif_offset;not null;default:0"`
	EmailNotificationInterval EmailInterval `json:"email_notification_interval" gorm:"column:email_notification_interval;size:16;not null;default:never;index"`
	CreatedAt                 time.Time     `json:"created_at"`
	UpdatedAt                 time.Time     `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Profile holds the display name shown as an author in emails and webhooks.
type Profile struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	UserID      int64  `json:"user_id" gorm:"not null;index"`
	ProfileName string `json:"profile_name" gorm:"column:profile_name;size:255"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Address is a wallet address registered in a community, optionally owned by a user.
type Address struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	Address     string `json:"address" gorm:"size:255;not null;index"`
	CommunityID string `json:"community_id" gorm:"column:community_id;size:255;index"`
	UserID      *int64 `json:"user_id,omitempty" gorm:"index"`
	ProfileID   *int64 `json:"profile_id,omitempty"`
}

func (Address) TableName() string {
	return "addresses"
}

// ShortAddress renders an address as "0x1234…cdef" style for display when no
// profile name exists.
func ShortAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// Community is a forum/chain space. IconURL is used as a webhook preview fallback.
type Community struct {
	ID      string `json:"id" gorm:"primaryKey;size:255"`
	Name    string `json:"name" gorm:"size:255"`
	IconURL string `json:"icon_url" gorm:"column:icon_url;size:1024"`
}

func (Community) TableName() string {
	return "communities"
}
