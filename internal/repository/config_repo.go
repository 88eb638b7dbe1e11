package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/rideon/dispatch/internal/models"
)

// MatchingConfig and penalty rules are externally editable data; callers read
// current values per request instead of caching them.
type ConfigRepository interface {
	GetMatchingConfig(ctx context.Context, city string) (*models.MatchingConfig, error)
	ListPenaltyRules(ctx context.Context, city, cancelledBy, rideStatus string) ([]models.CancellationPenalty, error)
}

type configRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(db *sqlx.DB) ConfigRepository {
	return &configRepository{db: db}
}

// GetMatchingConfig loads the city's row, falling back to the default-city
// row, then to the compiled-in defaults. The returned config is validated.
func (r *configRepository) GetMatchingConfig(ctx context.Context, city string) (*models.MatchingConfig, error) {
	cfg, err := r.getConfigRow(ctx, city)
	if err != nil {
		return nil, err
	}
	if cfg == nil && city != models.DefaultCity {
		cfg, err = r.getConfigRow(ctx, models.DefaultCity)
		if err != nil {
			return nil, err
		}
	}
	if cfg == nil {
		cfg = models.DefaultMatchingConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *configRepository) getConfigRow(ctx context.Context, city string) (*models.MatchingConfig, error) {
	var cfg models.MatchingConfig
	query := `SELECT * FROM matching_configs WHERE city = $1`
	err := r.db.GetContext(ctx, &cfg, query, city)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &cfg, err
}

// ListPenaltyRules returns both city-specific and default-city rows for the
// actor/status pair; rule selection happens in the penalty engine.
func (r *configRepository) ListPenaltyRules(ctx context.Context, city, cancelledBy, rideStatus string) ([]models.CancellationPenalty, error) {
	var rules []models.CancellationPenalty
	query := `
		SELECT * FROM cancellation_penalties
		WHERE city IN ($1, $2) AND cancelled_by = $3 AND ride_status = $4
		ORDER BY id
	`
	err := r.db.SelectContext(ctx, &rules, query, city, models.DefaultCity, cancelledBy, rideStatus)
	return rules, err
}
