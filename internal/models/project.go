package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDesigner Role = "designer"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleDesigner
}

type User struct {
	ID          string    `json:"id" doc:"-"`
	Email       string    `json:"email" doc:"email"`
	DisplayName *string   `json:"display_name" doc:"displayName"`
	Role        Role      `json:"role" doc:"role"`
	CreatedAt   time.Time `json:"created_at" doc:"createdAt"`
}

type Project struct {
	ID              string     `json:"id" doc:"-"`
	OwnerID         string     `json:"owner_id" doc:"-"`
	Title           string     `json:"title" doc:"title"`
	Description     string     `json:"description" doc:"description"`
	CreatedAt       time.Time  `json:"created_at" doc:"createdAt"`
	Paid            bool       `json:"paid" doc:"paid"`
	Price           int64      `json:"price" doc:"price"`
	PaymentID       string     `json:"payment_id,omitempty" doc:"paymentId"`
	PaymentDate     *time.Time `json:"payment_date,omitempty" doc:"paymentDate"`
	PaymentAmount   int64      `json:"payment_amount,omitempty" doc:"paymentAmount"`
	PaymentCurrency string     `json:"payment_currency,omitempty" doc:"paymentCurrency"`
}

// FileRef points at an uploaded object. Path is the object key inside the
// bucket and never leaves the server.
type FileRef struct {
	URL  string `doc:"url"`
	Name string `doc:"name"`
	Type string `doc:"type"`
	Path string `doc:"path"`
}

type Message struct {
	ID        string    `doc:"-"`
	Text      string    `doc:"text"`
	Sender    Role      `doc:"sender"`
	CreatedAt time.Time `doc:"createdAt"`
	Read      bool      `doc:"read"`
	File      *FileRef  `doc:"file"`
}

type Dimension struct {
	ID                string    `json:"id" doc:"-"`
	MeasurementNumber int       `json:"measurement_number" doc:"measurementNumber"`
	Order             int       `json:"order" doc:"order"`
	Value             int       `json:"value" doc:"value"`
	Label             string    `json:"label" doc:"label"`
	Notes             *string   `json:"notes" doc:"notes"`
	CreatedAt         time.Time `json:"created_at" doc:"createdAt"`
}
