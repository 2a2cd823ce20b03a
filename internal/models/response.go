package models

import "time"

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}

type AttachmentView struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Locked bool   `json:"locked"`
}

type MessageView struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Sender    Role            `json:"sender"`
	CreatedAt time.Time       `json:"created_at"`
	Read      bool            `json:"read"`
	File      *AttachmentView `json:"file,omitempty"`
}

type MessageListResponse struct {
	Messages []MessageView `json:"messages"`
}

type DimensionListResponse struct {
	Dimensions []Dimension `json:"dimensions"`
}

type AppendDimensionsResponse struct {
	Dimensions       []Dimension `json:"dimensions"`
	SummaryMessageID string      `json:"summary_message_id"`
}

type StatusResponse struct {
	ProjectID   string     `json:"project_id"`
	Paid        bool       `json:"paid"`
	Price       int64      `json:"price"`
	PaymentID   string     `json:"payment_id,omitempty"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
	SessionID   string `json:"session_id"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

type MeResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        Role   `json:"role"`
}

type CustomerSummary struct {
	User     User      `json:"user"`
	Projects []Project `json:"projects"`
}

type CustomersResponse struct {
	Customers []CustomerSummary `json:"customers"`
}

type UploadResponse struct {
	Message MessageView `json:"message"`
}

type AckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}
