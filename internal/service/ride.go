package service

import (
	"context"

	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/repository"
)

// RideService handles ride intake and reads. Matching itself lives in the
// dispatch service; intake only establishes the pending row.
type RideService interface {
	CreateRide(ctx context.Context, req *models.CreateRideRequest, idempotencyKey string) (*models.Ride, error)
	GetRide(ctx context.Context, id string) (*models.RideResponse, error)
}

type rideService struct {
	rideRepo    repository.RideRepository
	captainRepo repository.CaptainRepository
}

func NewRideService(rideRepo repository.RideRepository, captainRepo repository.CaptainRepository) RideService {
	return &rideService{rideRepo: rideRepo, captainRepo: captainRepo}
}

func (s *rideService) CreateRide(ctx context.Context, req *models.CreateRideRequest, idempotencyKey string) (*models.Ride, error) {
	if idempotencyKey != "" {
		existing, err := s.rideRepo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	active, err := s.rideRepo.GetActiveByRiderID(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.RiderHasActiveRide()
	}

	ride := &models.Ride{
		RiderID:     req.RiderID,
		PickupLat:   req.Pickup.Lat,
		PickupLng:   req.Pickup.Lng,
		DropLat:     req.Drop.Lat,
		DropLng:     req.Drop.Lng,
		VehicleType: req.VehicleType,
		City:        req.City,
	}
	if idempotencyKey != "" {
		key := idempotencyKey
		ride.IdempotencyKey = &key
	}
	if req.EstimatedFare > 0 {
		fare := req.EstimatedFare
		ride.EstimatedFare = &fare
	}
	if req.EstimatedDistanceKm > 0 {
		dist := req.EstimatedDistanceKm
		ride.EstimatedDistanceKm = &dist
	}
	if req.EstimatedDurationMin > 0 {
		mins := req.EstimatedDurationMin
		ride.EstimatedDurationMin = &mins
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}
	return ride, nil
}

func (s *rideService) GetRide(ctx context.Context, id string) (*models.RideResponse, error) {
	ride, err := s.rideRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}

	resp := ride.ToResponse()
	if ride.CaptainID != nil {
		if captain, err := s.captainRepo.GetByID(ctx, *ride.CaptainID); err == nil && captain != nil {
			resp.Captain = captain.ToResponse()
		}
	}
	return resp, nil
}
