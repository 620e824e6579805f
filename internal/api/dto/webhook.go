package dto

// WebhookResponse acknowledges receipt of a processor webhook
type WebhookResponse struct {
	Received bool `json:"received"`
}
