//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/rideon/dispatch/internal/cache"
	"github.com/rideon/dispatch/internal/config"
	"github.com/rideon/dispatch/internal/database"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/repository"
)

// Bangalore coordinates
const (
	baseLat = 12.9716
	baseLng = 77.5946
	city    = "bangalore"
)

var (
	firstNames = []string{"Rahul", "Priya", "Amit", "Sneha", "Vikram", "Anita", "Raj", "Neha", "Suresh", "Kavita",
		"Arun", "Deepa", "Kiran", "Meera", "Sanjay", "Ritu", "Vijay", "Pooja", "Manoj", "Swati"}
	lastNames = []string{"Kumar", "Sharma", "Patel", "Singh", "Reddy", "Rao", "Gupta", "Joshi", "Nair", "Menon"}
)

func main() {
	rand.Seed(time.Now().UnixNano())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	ctx := context.Background()

	captainRepo := repository.NewCaptainRepository(db.DB)
	metricsRepo := repository.NewCaptainMetricsRepository(db.DB)
	captainCache := cache.NewCaptainLocationCache(redis.Client)

	seedMatchingConfig(ctx, db)
	seedPenaltyRules(ctx, db)

	vehicleTypes := []string{"bike", "auto", "mini", "sedan", "suv"}
	log.Println("Creating 100 captains...")
	created := 0

	for i := 0; i < 100; i++ {
		vt := vehicleTypes[rand.Intn(len(vehicleTypes))]
		captain := &models.Captain{
			Phone:         fmt.Sprintf("91%08d", rand.Intn(100000000)),
			Name:          fmt.Sprintf("%s %s", firstNames[rand.Intn(len(firstNames))], lastNames[rand.Intn(len(lastNames))]),
			City:          city,
			LicenseNumber: fmt.Sprintf("KA%07d", rand.Intn(10000000)),
			VehicleType:   vt,
			VehicleNumber: fmt.Sprintf("KA%02d%c%c%04d", rand.Intn(99), 'A'+rand.Intn(26), 'A'+rand.Intn(26), rand.Intn(10000)),
			Verified:      true,
		}

		if err := captainRepo.Create(ctx, captain); err != nil {
			log.Printf("Failed to create captain: %v", err)
			continue
		}
		if err := metricsRepo.Create(ctx, models.NewCaptainMetrics(captain.ID, time.Now())); err != nil {
			log.Printf("Failed to create metrics for captain %s: %v", captain.ID, err)
		}
		created++

		// Put roughly two thirds online with a position near the city center.
		if rand.Float64() < 0.66 {
			lat := baseLat + (rand.Float64()-0.5)*0.1
			lng := baseLng + (rand.Float64()-0.5)*0.1

			if err := captainRepo.UpdateStatus(ctx, captain.ID, models.CaptainStatusOnline); err != nil {
				log.Printf("Failed to set captain online: %v", err)
				continue
			}
			if err := captainRepo.UpdateLocation(ctx, captain.ID, lat, lng); err != nil {
				log.Printf("Failed to set captain location: %v", err)
			}
			if err := captainCache.UpdateLocation(ctx, captain.ID, vt, lat, lng, nil, nil); err != nil {
				log.Printf("Failed to index captain location: %v", err)
			}
		}
	}
	log.Printf("Created %d captains", created)
	log.Println("Seed complete")
}

func seedMatchingConfig(ctx context.Context, db *database.PostgresDB) {
	log.Println("Seeding matching configs...")
	query := `
		INSERT INTO matching_configs (city, initial_radius_km, max_radius_km, radius_expansion_step_km,
			offer_timeout_seconds, max_offers_per_ride, max_retry_attempts,
			weight_eta, weight_acceptance, weight_rating, weight_cancellation,
			captain_delay_threshold_mins)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (city) DO NOTHING
	`
	rows := []*models.MatchingConfig{
		models.DefaultMatchingConfig(),
		{
			City: city, InitialRadiusKm: 2.0, MaxRadiusKm: 6.0, RadiusExpansionStepKm: 1.0,
			OfferTimeoutSeconds: 25, MaxOffersPerRide: 3, MaxRetryAttempts: 5,
			WeightETA: 0.4, WeightAcceptance: 0.2, WeightRating: 0.2, WeightCancellation: 0.2,
			CaptainDelayThresholdMins: 5,
		},
	}
	for _, c := range rows {
		if _, err := db.ExecContext(ctx, query,
			c.City, c.InitialRadiusKm, c.MaxRadiusKm, c.RadiusExpansionStepKm,
			c.OfferTimeoutSeconds, c.MaxOffersPerRide, c.MaxRetryAttempts,
			c.WeightETA, c.WeightAcceptance, c.WeightRating, c.WeightCancellation,
			c.CaptainDelayThresholdMins); err != nil {
			log.Printf("Failed to seed matching config for %s: %v", c.City, err)
		}
	}
}

func seedPenaltyRules(ctx context.Context, db *database.PostgresDB) {
	log.Println("Seeding cancellation penalty rules...")
	query := `
		INSERT INTO cancellation_penalties (city, cancelled_by, ride_status,
			min_time_after_match_seconds, max_time_after_match_seconds,
			penalty_amount, penalty_type, cooldown_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	intp := func(v int) *int { return &v }

	type rule struct {
		cancelledBy string
		rideStatus  string
		minSecs     int
		maxSecs     *int
		amount      float64
		penaltyType string
		cooldown    *int
	}
	rules := []rule{
		// Riders cancel free inside a grace window, pay after it.
		{models.CancelledByRider, models.RideStatusPending, 0, nil, 0, models.PenaltyTypeWarning, nil},
		{models.CancelledByRider, models.RideStatusMatched, 0, intp(120), 0, models.PenaltyTypeWarning, nil},
		{models.CancelledByRider, models.RideStatusMatched, 120, intp(300), 15, models.PenaltyTypeFee, nil},
		{models.CancelledByRider, models.RideStatusMatched, 300, nil, 25, models.PenaltyTypeFee, nil},
		{models.CancelledByRider, models.RideStatusCaptainArriving, 0, nil, 25, models.PenaltyTypeFee, nil},
		{models.CancelledByRider, models.RideStatusWaitingForRider, 0, nil, 40, models.PenaltyTypeFee, nil},
		// Captain cancellations count toward the daily cooldown limit.
		{models.CancelledByCaptain, models.RideStatusMatched, 0, nil, 0, models.PenaltyTypeCooldown, intp(30)},
		{models.CancelledByCaptain, models.RideStatusCaptainArriving, 0, nil, 0, models.PenaltyTypeCooldown, intp(30)},
		{models.CancelledByCaptain, models.RideStatusWaitingForRider, 0, nil, 0, models.PenaltyTypeCooldown, intp(45)},
	}
	for _, r := range rules {
		if _, err := db.ExecContext(ctx, query,
			models.DefaultCity, r.cancelledBy, r.rideStatus,
			r.minSecs, r.maxSecs, r.amount, r.penaltyType, r.cooldown); err != nil {
			log.Printf("Failed to seed penalty rule: %v", err)
		}
	}
}
