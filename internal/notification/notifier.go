package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/rideon/dispatch/internal/models"
)

// Notifier alerts a captain of a new offer or either party of a
// cancellation. Delivery is fire-and-forget: failures are logged and never
// surface to the calling operation.
type Notifier interface {
	OfferCreated(ctx context.Context, offer *models.Offer, ride *models.Ride)
	RideCancelled(ctx context.Context, ride *models.Ride, cancelledBy string)
}

// PushNotifier posts events to the notification provider's HTTP endpoint.
type PushNotifier struct {
	endpoint string
	client   *http.Client
}

func NewPushNotifier(endpoint string) *PushNotifier {
	return &PushNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

func (n *PushNotifier) OfferCreated(ctx context.Context, offer *models.Offer, ride *models.Ride) {
	n.post(ctx, map[string]interface{}{
		"type":       "offer_created",
		"offer_id":   offer.ID,
		"captain_id": offer.CaptainID,
		"ride_id":    ride.ID,
		"pickup_lat": ride.PickupLat,
		"pickup_lng": ride.PickupLng,
		"expires_at": offer.ExpiresAt,
	})
}

func (n *PushNotifier) RideCancelled(ctx context.Context, ride *models.Ride, cancelledBy string) {
	n.post(ctx, map[string]interface{}{
		"type":         "ride_cancelled",
		"ride_id":      ride.ID,
		"rider_id":     ride.RiderID,
		"captain_id":   ride.CaptainID,
		"cancelled_by": cancelledBy,
	})
}

func (n *PushNotifier) post(ctx context.Context, payload map[string]interface{}) {
	if n.endpoint == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: marshal failed: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: build request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("notify: delivery failed: %v", err)
		return
	}
	resp.Body.Close()
}

// NopNotifier discards everything; used when no provider is configured and
// in tests.
type NopNotifier struct{}

func (NopNotifier) OfferCreated(context.Context, *models.Offer, *models.Ride) {}
func (NopNotifier) RideCancelled(context.Context, *models.Ride, string)       {}
