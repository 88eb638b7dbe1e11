package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rideon/dispatch/internal/cache"
	"github.com/rideon/dispatch/internal/models"
)

const (
	testLat = 12.9716
	testLng = 77.5946
)

func TestFindCandidatesDatabaseFallback(t *testing.T) {
	nearLat, nearLng := testLat+0.005, testLng // ~0.55km north
	farLat := testLat + 0.2                    // ~22km away

	captains := []*models.Captain{
		onlineCaptain("near", models.VehicleTypeSedan, "bangalore", nearLat, nearLng),
		onlineCaptain("far", models.VehicleTypeSedan, "bangalore", farLat, testLng),
		onlineCaptain("wrong-type", models.VehicleTypeBike, "bangalore", nearLat, nearLng),
		onlineCaptain("excluded", models.VehicleTypeSedan, "bangalore", nearLat, nearLng),
	}
	offline := onlineCaptain("offline", models.VehicleTypeSedan, "bangalore", nearLat, nearLng)
	offline.Status = models.CaptainStatusOffline
	captains = append(captains, offline)

	locator := NewLocatorService(newFakeCaptainRepo(captains...), newFakeMetricsRepo(), nil)

	got, err := locator.FindCandidates(context.Background(), CandidateQuery{
		PickupLat:   testLat,
		PickupLng:   testLng,
		VehicleType: models.VehicleTypeSedan,
		City:        "bangalore",
		RadiusKm:    3.0,
		Excluded:    []string{"excluded"},
		Now:         time.Now(),
	})
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}

	if len(got) != 1 || got[0].CaptainID != "near" {
		ids := make([]string, len(got))
		for i, c := range got {
			ids[i] = c.CaptainID
		}
		t.Fatalf("candidates = %v, want [near]", ids)
	}
	if got[0].DistanceKm <= 0 || got[0].DistanceKm > 3.0 {
		t.Errorf("distance = %v, want within (0, 3]", got[0].DistanceKm)
	}
}

func TestFindCandidatesUsesGeoCache(t *testing.T) {
	captain := onlineCaptain("c1", models.VehicleTypeAuto, "bangalore", testLat, testLng)
	geoCache := newFakeLocationCache()
	geoCache.nearby = []cache.NearbyCaptain{{CaptainID: "c1", DistanceKm: 0.8}}
	geoCache.locations["c1"] = &cache.LastKnownLocation{Lat: testLat + 0.007, Lng: testLng}

	locator := NewLocatorService(newFakeCaptainRepo(captain), newFakeMetricsRepo(), geoCache)

	got, err := locator.FindCandidates(context.Background(), CandidateQuery{
		PickupLat:   testLat,
		PickupLng:   testLng,
		VehicleType: models.VehicleTypeAuto,
		City:        "bangalore",
		RadiusKm:    2.0,
		Now:         time.Now(),
	})
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	if len(got) != 1 || got[0].CaptainID != "c1" {
		t.Fatalf("expected c1 from geo cache, got %v", got)
	}
	if got[0].DistanceKm != 0.8 {
		t.Errorf("distance should come from the geo hit, got %v", got[0].DistanceKm)
	}
	if got[0].Lat != testLat+0.007 {
		t.Errorf("coordinates should come from the cached location, got %v", got[0].Lat)
	}
}

func TestFindCandidatesFiltersCooldownAndDefaults(t *testing.T) {
	now := time.Now()
	lat, lng := testLat+0.005, testLng

	fresh := onlineCaptain("fresh", models.VehicleTypeSedan, "bangalore", lat, lng)
	seasoned := onlineCaptain("seasoned", models.VehicleTypeSedan, "bangalore", lat, lng)
	cooled := onlineCaptain("cooled", models.VehicleTypeSedan, "bangalore", lat, lng)

	seasonedMetrics := models.NewCaptainMetrics("seasoned", now)
	seasonedMetrics.AcceptanceRate = 75
	seasonedMetrics.CancellationRate = 10

	cooledMetrics := models.NewCaptainMetrics("cooled", now)
	until := now.Add(20 * time.Minute)
	cooledMetrics.CooldownUntil = &until

	locator := NewLocatorService(
		newFakeCaptainRepo(fresh, seasoned, cooled),
		newFakeMetricsRepo(seasonedMetrics, cooledMetrics),
		nil,
	)

	got, err := locator.FindCandidates(context.Background(), CandidateQuery{
		PickupLat:   testLat,
		PickupLng:   testLng,
		VehicleType: models.VehicleTypeSedan,
		City:        "bangalore",
		RadiusKm:    3.0,
		Now:         now,
	})
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}

	byID := make(map[string]models.CaptainCandidate)
	for _, c := range got {
		byID[c.CaptainID] = c
	}
	if _, ok := byID["cooled"]; ok {
		t.Error("captain under cooldown should be filtered out")
	}
	if c, ok := byID["fresh"]; !ok {
		t.Error("captain with no history should remain")
	} else if c.AcceptanceRate != models.NeutralAcceptanceRate || c.CancellationRate != models.NeutralCancellationRate {
		t.Errorf("fresh captain should score neutrally, got acc=%v canc=%v", c.AcceptanceRate, c.CancellationRate)
	}
	if c, ok := byID["seasoned"]; !ok {
		t.Error("captain with history should remain")
	} else if c.AcceptanceRate != 75 || c.CancellationRate != 10 {
		t.Errorf("seasoned rates = %v/%v, want 75/10", c.AcceptanceRate, c.CancellationRate)
	}
}

func TestHaversine(t *testing.T) {
	// Bangalore to Chennai is roughly 290km.
	d := Haversine(12.9716, 77.5946, 13.0827, 80.2707)
	if math.Abs(d-290) > 15 {
		t.Errorf("Haversine() = %v, want ~290", d)
	}

	if d := Haversine(testLat, testLng, testLat, testLng); d != 0 {
		t.Errorf("zero distance expected for identical points, got %v", d)
	}
}
