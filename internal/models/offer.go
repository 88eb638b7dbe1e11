package models

import (
	"time"
)

// Offer status constants
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusDeclined = "declined"
	OfferStatusExpired  = "expired"
)

// Offer responses
const (
	OfferResponseAccept  = "accept"
	OfferResponseDecline = "decline"
)

type Offer struct {
	ID            string     `db:"id" json:"id"`
	RideID        string     `db:"ride_id" json:"ride_id"`
	CaptainID     string     `db:"captain_id" json:"captain_id"`
	Status        string     `db:"status" json:"status"`
	Sequence      int        `db:"sequence" json:"sequence"`
	SentAt        time.Time  `db:"sent_at" json:"sent_at"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expires_at"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	DeclineReason *string    `db:"decline_reason" json:"decline_reason,omitempty"`
}

type OfferResponseRequest struct {
	CaptainID     string `json:"captain_id" validate:"required,uuid"`
	Response      string `json:"response" validate:"required,oneof=accept decline"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

type OfferView struct {
	ID        string        `json:"id"`
	RideID    string        `json:"ride_id"`
	Status    string        `json:"status"`
	Sequence  int           `json:"sequence"`
	SentAt    time.Time     `json:"sent_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Ride      *RideResponse `json:"ride,omitempty"`
}

func (o *Offer) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

func (o *Offer) IsTerminal() bool {
	return o.Status != OfferStatusPending
}

func (o *Offer) ToView() *OfferView {
	return &OfferView{
		ID:        o.ID,
		RideID:    o.RideID,
		Status:    o.Status,
		Sequence:  o.Sequence,
		SentAt:    o.SentAt,
		ExpiresAt: o.ExpiresAt,
	}
}
