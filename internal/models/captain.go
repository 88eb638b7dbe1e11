package models

import (
	"time"
)

// Captain availability constants
const (
	CaptainStatusOffline = "offline"
	CaptainStatusOnline  = "online"
	CaptainStatusOnRide  = "on_ride"
)

// Vehicle types
const (
	VehicleTypeBike  = "bike"
	VehicleTypeAuto  = "auto"
	VehicleTypeMini  = "mini"
	VehicleTypeSedan = "sedan"
	VehicleTypeSUV   = "suv"
)

type Captain struct {
	ID            string     `db:"id" json:"id"`
	Phone         string     `db:"phone" json:"phone"`
	Name          string     `db:"name" json:"name"`
	Email         *string    `db:"email" json:"email,omitempty"`
	City          string     `db:"city" json:"city"`
	LicenseNumber string     `db:"license_number" json:"license_number"`
	Verified      bool       `db:"verified" json:"verified"`
	VehicleID     string     `db:"vehicle_id" json:"vehicle_id"`
	VehicleType   string     `db:"vehicle_type" json:"vehicle_type"`
	VehicleNumber string     `db:"vehicle_number" json:"vehicle_number"`
	VehicleActive bool       `db:"vehicle_active" json:"vehicle_active"`
	Status        string     `db:"status" json:"status"`
	Rating        float64    `db:"rating" json:"rating"`
	CurrentLat    *float64   `db:"current_lat" json:"current_lat,omitempty"`
	CurrentLng    *float64   `db:"current_lng" json:"current_lng,omitempty"`
	LocationAt    *time.Time `db:"location_at" json:"location_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateCaptainRequest struct {
	Phone         string `json:"phone" validate:"required,min=10,max=15"`
	Name          string `json:"name" validate:"required,min=2,max=100"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	City          string `json:"city,omitempty"`
	LicenseNumber string `json:"license_number" validate:"required"`
	VehicleType   string `json:"vehicle_type" validate:"required,oneof=bike auto mini sedan suv"`
	VehicleNumber string `json:"vehicle_number" validate:"required"`
}

type UpdateCaptainLocationRequest struct {
	Lat      float64  `json:"lat" validate:"required,latitude"`
	Lng      float64  `json:"lng" validate:"required,longitude"`
	Heading  *float64 `json:"heading,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

type CaptainResponse struct {
	ID            string   `json:"id"`
	Phone         string   `json:"phone"`
	Name          string   `json:"name"`
	Rating        float64  `json:"rating"`
	VehicleType   string   `json:"vehicle_type"`
	VehicleNumber string   `json:"vehicle_number"`
	Status        string   `json:"status"`
	CurrentLat    *float64 `json:"current_lat,omitempty"`
	CurrentLng    *float64 `json:"current_lng,omitempty"`
}

// CaptainCandidate is the transient matching view of a captain. It is never
// persisted; the locator builds it and the scorer annotates it.
type CaptainCandidate struct {
	CaptainID        string
	VehicleID        string
	Lat              float64
	Lng              float64
	DistanceKm       float64
	Rating           float64
	AcceptanceRate   float64
	CancellationRate float64
	Score            float64
}

func (c *Captain) ToResponse() *CaptainResponse {
	return &CaptainResponse{
		ID:            c.ID,
		Phone:         c.Phone,
		Name:          c.Name,
		Rating:        c.Rating,
		VehicleType:   c.VehicleType,
		VehicleNumber: c.VehicleNumber,
		Status:        c.Status,
		CurrentLat:    c.CurrentLat,
		CurrentLng:    c.CurrentLng,
	}
}

func IsValidVehicleType(vt string) bool {
	switch vt {
	case VehicleTypeBike, VehicleTypeAuto, VehicleTypeMini, VehicleTypeSedan, VehicleTypeSUV:
		return true
	}
	return false
}
