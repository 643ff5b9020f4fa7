// Package api defines the Artforge wire types and the normalization step
// that converts backend responses into a single canonical shape.
package api

import (
	"time"
)

// ImageRecord is a generated image as returned by the backend.
type ImageRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Prompt    string    `json:"prompt"`
	Provider  string    `json:"provider"`
	Rating    float64   `json:"rating"`
	IsPublic  bool      `json:"isPublic"`
	Tags      []string  `json:"tags"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResultPage is one page of search or feed results.
type ResultPage struct {
	Items   []ImageRecord `json:"items"`
	HasMore bool          `json:"hasMore"`
	Total   int           `json:"total"`
}

// UserRecord is a platform user as seen by the admin endpoints.
type UserRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Credits   int       `json:"credits"`
	IsAdmin   bool      `json:"isAdmin"`
	Suspended bool      `json:"suspended"`
	CreatedAt time.Time `json:"createdAt"`
}

// PromoCode grants a credit amount to users who redeem it.
type PromoCode struct {
	Code      string    `json:"code"`
	Credits   int       `json:"credits"`
	MaxUses   int       `json:"maxUses"`
	Uses      int       `json:"uses"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider is an image-generation backend provider entry.
type Provider struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Enabled   bool   `json:"enabled"`
	CostCents int    `json:"costCents"`
}

// BillingSummary is the per-user billing overview.
type BillingSummary struct {
	UserID        string `json:"userId"`
	Credits       int    `json:"credits"`
	SpentCents    int    `json:"spentCents"`
	ImagesCreated int    `json:"imagesCreated"`
}

// Profile is the editable part of a user's own account.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}
