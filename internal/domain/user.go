package domain

import "time"

// User is created on the first authenticate call and never changes afterwards.
type User struct {
	CustomerID string    `json:"customerId"`
	CreatedAt  time.Time `json:"createdAt"`
}
