package feedback

import (
	"time"

	"github.com/shopspring/decimal"
)

// Feedback is one product review as persisted in both indexes.
type Feedback struct {
	ID           string     `json:"id" validate:"required"`
	ItemID       string     `json:"itemId" validate:"required"`
	CustomerName string     `json:"customerName" validate:"required,max=80"`
	Rating       int        `json:"rating" validate:"gte=1,lte=5"`
	Text         string     `json:"text" validate:"max=2000"`
	ImageData    string     `json:"imageData,omitempty" validate:"omitempty,datauri|base64"`
	CreatedAt    time.Time  `json:"createdAt" validate:"required"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func (f Feedback) equal(other Feedback) bool {
	if f.ID != other.ID || f.ItemID != other.ItemID || f.CustomerName != other.CustomerName ||
		f.Rating != other.Rating || f.Text != other.Text || f.ImageData != other.ImageData ||
		!f.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if f.UpdatedAt == nil || other.UpdatedAt == nil {
		return f.UpdatedAt == nil && other.UpdatedAt == nil
	}
	return f.UpdatedAt.Equal(*other.UpdatedAt)
}

// Input is a new review as submitted by a shopper.
type Input struct {
	ItemID       string `json:"itemId" validate:"required,max=200"`
	CustomerName string `json:"customerName" validate:"required,max=80"`
	Rating       int    `json:"rating" validate:"gte=1,lte=5"`
	Text         string `json:"text" validate:"max=2000"`
	ImageData    string `json:"imageData,omitempty" validate:"omitempty,datauri|base64"`
}

// Patch changes selected fields of a review; nil fields are kept.
type Patch struct {
	CustomerName *string `json:"customerName,omitempty" validate:"omitempty,max=80"`
	Rating       *int    `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Text         *string `json:"text,omitempty" validate:"omitempty,max=2000"`
	ImageData    *string `json:"imageData,omitempty" validate:"omitempty,datauri|base64"`
}

// Summary aggregates the reviews of one item.
type Summary struct {
	ItemID  string          `json:"itemId"`
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}
