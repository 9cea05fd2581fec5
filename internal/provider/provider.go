package provider

import (
	"context"

	"github.com/spectorhq/spector/internal/models"
)

// Adapter is the contract between the orchestration layer and one external
// data provider. Implementations own all transport concerns; the
// orchestrator only sees intelligence data in, intelligence data out, so a
// real HTTP client can replace a simulated adapter without touching any
// planning logic.
type Adapter interface {
	// ID returns the provider id this adapter serves
	ID() string

	// Fetch retrieves intelligence about the request target. A nil error
	// with partial data is valid; the normalizer decides what is usable.
	Fetch(ctx context.Context, req *models.IntelRequest, creds models.Credentials) (*models.IntelData, error)

	// Probe issues a lightweight health check against the provider
	Probe(ctx context.Context) error
}
