package request

// PaymentWebhookPayload covers both the signed event envelope and the
// legacy flat notification. Fields unused by one shape stay empty.
type PaymentWebhookPayload struct {
	ID    string             `json:"id"`
	Event string             `json:"event"`
	Data  PaymentWebhookData `json:"data"`

	// legacy
	OrderID       string `json:"order_id"`
	State         string `json:"state"`
	TransactionID string `json:"transaction_id"`
}

type PaymentWebhookData struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	SubscriptionID string `json:"subscription_id"`
	Reference      string `json:"reference"`
	TransactionID  string `json:"transaction_id"`
	Amount         *int64 `json:"amount"`
}

// IsLegacy reports whether the payload uses the flat pre-envelope shape.
func (p *PaymentWebhookPayload) IsLegacy() bool {
	return p.Event == "" && p.State != ""
}
