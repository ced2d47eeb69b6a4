package integration

import "commonwealth/internal/domain"

type CreateWebhookRequest struct {
	URL        string   `json:"url" binding:"required"`
	Categories []string `json:"categories"`
}

type UpdateWebhookRequest struct {
	URL        string   `json:"url" binding:"required"`
	Categories []string `json:"categories" binding:"required"`
}

type WebhookResponse struct {
	ID          int64    `json:"id"`
	URL         string   `json:"url"`
	CommunityID string   `json:"community_id"`
	Categories  []string `json:"categories"`
}

func toResponse(w *domain.Webhook) WebhookResponse {
	cats := []string(w.Categories)
	if cats == nil {
		cats = []string{}
	}
	return WebhookResponse{
		ID:          w.ID,
		URL:         w.URL,
		CommunityID: w.CommunityID,
		Categories:  cats,
	}
}
