package domain

import "gorm.io/datatypes"

// Webhook is a community integration target with a category allowlist.
type Webhook struct {
	ID          int64                       `json:"id" gorm:"primaryKey"`
	URL         string                      `json:"url" gorm:"size:2048;not null"`
	CommunityID string                      `json:"community_id" gorm:"column:community_id;size:255;not null;index"`
	Categories  datatypes.JSONSlice[string] `json:"categories" gorm:"column:categories"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// HasCategory reports whether c is in the webhook's allowlist.
func (w *Webhook) HasCategory(c Category) bool {
	for _, id := range w.Categories {
		if Category(id) == c {
			return true
		}
	}
	return false
}
