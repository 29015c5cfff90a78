package models

import "time"

// Role values assignable to a user.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User represents a registered user of the store.
type User struct {
	ID           uint      `json:"user_id" gorm:"primaryKey"`
	Name         string    `json:"user_name" gorm:"type:varchar(120);index" validate:"required,min=3,max=120"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(150)" validate:"required,email"`
	Role         string    `json:"role" gorm:"type:varchar(50)" validate:"omitempty,oneof=admin customer"`
	PasswordHash string    `json:"-" gorm:"type:varchar(128)"`
	CreatedAt    time.Time `json:"created_at"`

	Address *Address `json:"address,omitempty"`
}

// Address is a user's shipping address.
type Address struct {
	ID         uint   `json:"address_id" gorm:"primaryKey"`
	Street     string `json:"street" gorm:"type:varchar(150)"`
	City       string `json:"city" gorm:"type:varchar(50)"`
	State      string `json:"state" gorm:"type:varchar(50)"`
	PostalCode string `json:"postal_code" gorm:"type:varchar(20)"`
	Country    string `json:"country" gorm:"type:varchar(50)"`
	UserID     uint   `json:"user_id"`
}
