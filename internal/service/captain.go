package service

import (
	"context"
	"log"
	"time"

	"github.com/rideon/dispatch/internal/cache"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/repository"
)

// CaptainService covers the captain lifecycle around matching: registration,
// availability flips and the location feed.
type CaptainService interface {
	CreateCaptain(ctx context.Context, req *models.CreateCaptainRequest) (*models.Captain, error)
	GetCaptain(ctx context.Context, id string) (*models.Captain, error)
	GoOnline(ctx context.Context, id string) error
	GoOffline(ctx context.Context, id string) error
	UpdateLocation(ctx context.Context, id string, req *models.UpdateCaptainLocationRequest) error
}

type captainService struct {
	captainRepo  repository.CaptainRepository
	metricsRepo  repository.CaptainMetricsRepository
	captainCache cache.CaptainLocationCache
}

func NewCaptainService(
	captainRepo repository.CaptainRepository,
	metricsRepo repository.CaptainMetricsRepository,
	captainCache cache.CaptainLocationCache,
) CaptainService {
	return &captainService{
		captainRepo:  captainRepo,
		metricsRepo:  metricsRepo,
		captainCache: captainCache,
	}
}

func (s *captainService) CreateCaptain(ctx context.Context, req *models.CreateCaptainRequest) (*models.Captain, error) {
	existing, err := s.captainRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("captain with this phone already exists")
	}

	captain := &models.Captain{
		Phone:         req.Phone,
		Name:          req.Name,
		City:          req.City,
		LicenseNumber: req.LicenseNumber,
		VehicleType:   req.VehicleType,
		VehicleNumber: req.VehicleNumber,
	}
	if req.Email != "" {
		email := req.Email
		captain.Email = &email
	}
	if err := s.captainRepo.Create(ctx, captain); err != nil {
		return nil, err
	}

	if err := s.metricsRepo.Create(ctx, models.NewCaptainMetrics(captain.ID, time.Now())); err != nil {
		return nil, err
	}
	return captain, nil
}

func (s *captainService) GetCaptain(ctx context.Context, id string) (*models.Captain, error) {
	captain, err := s.captainRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if captain == nil {
		return nil, apperrors.NotFound("captain")
	}

	// Prefer the cache's fresher coordinates when it has them.
	if s.captainCache != nil {
		if loc, err := s.captainCache.GetLocation(ctx, id); err == nil && loc != nil {
			captain.CurrentLat = &loc.Lat
			captain.CurrentLng = &loc.Lng
		}
	}
	return captain, nil
}

func (s *captainService) GoOnline(ctx context.Context, id string) error {
	captain, err := s.captainRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if captain == nil {
		return apperrors.NotFound("captain")
	}
	if !captain.Verified {
		return apperrors.BadRequest("captain is not verified")
	}
	if captain.Status == models.CaptainStatusOnline {
		return nil
	}

	metrics, err := s.metricsRepo.GetByCaptainID(ctx, id)
	if err != nil {
		return err
	}
	if metrics != nil && metrics.InCooldown(time.Now()) {
		return apperrors.CaptainInCooldown()
	}

	applied, err := s.captainRepo.SetStatusIf(ctx, id, models.CaptainStatusOffline, models.CaptainStatusOnline)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.InvalidState("captain cannot go online from " + captain.Status)
	}

	if s.captainCache != nil {
		if err := s.captainCache.SetMeta(ctx, id, models.CaptainStatusOnline, captain.VehicleType); err != nil {
			log.Printf("captain: caching online meta for %s failed: %v", id, err)
		}
	}
	return nil
}

func (s *captainService) GoOffline(ctx context.Context, id string) error {
	captain, err := s.captainRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if captain == nil {
		return apperrors.NotFound("captain")
	}
	if captain.Status == models.CaptainStatusOffline {
		return nil
	}
	if captain.Status == models.CaptainStatusOnRide {
		return apperrors.InvalidState("captain cannot go offline during an active ride")
	}

	applied, err := s.captainRepo.SetStatusIf(ctx, id, models.CaptainStatusOnline, models.CaptainStatusOffline)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.InvalidState("captain availability changed concurrently")
	}

	if s.captainCache != nil {
		if err := s.captainCache.Remove(ctx, id, captain.VehicleType); err != nil {
			log.Printf("captain: removing %s from geo index failed: %v", id, err)
		}
		if err := s.captainCache.SetMeta(ctx, id, models.CaptainStatusOffline, captain.VehicleType); err != nil {
			log.Printf("captain: caching offline meta for %s failed: %v", id, err)
		}
	}
	return nil
}

func (s *captainService) UpdateLocation(ctx context.Context, id string, req *models.UpdateCaptainLocationRequest) error {
	captain, err := s.captainRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if captain == nil {
		return apperrors.NotFound("captain")
	}
	if captain.Status == models.CaptainStatusOffline {
		return apperrors.InvalidState("offline captains do not report location")
	}

	if s.captainCache != nil {
		if err := s.captainCache.UpdateLocation(ctx, id, captain.VehicleType, req.Lat, req.Lng, req.Heading, req.Accuracy); err != nil {
			log.Printf("captain: geo index update for %s failed: %v", id, err)
		}
	}
	return s.captainRepo.UpdateLocation(ctx, id, req.Lat, req.Lng)
}
