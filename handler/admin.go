// Package handler holds the admin HTTP surface's route handlers: a
// liveness probe and a read-only view of each known domain's current
// token count and halt state.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Admin serves the regulator's read-only operator endpoints.
type Admin struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewAdmin returns an Admin backed by client.
func NewAdmin(client *redis.Client, logger zerolog.Logger) *Admin {
	return &Admin{client: client, logger: logger.With().Str("component", "admin").Logger()}
}

// Healthz reports liveness plus store connectivity.
func (a *Admin) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "ok"
	code := http.StatusOK
	if err := a.client.Ping(ctx).Err(); err != nil {
		status = "store_unreachable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// DomainStatus is one row of the /v1/admin/domains listing.
type DomainStatus struct {
	Domain string `json:"domain"`
	Tokens int64 `json:"tokens"`
	HardHalted bool `json:"hard_halted"`
	TempHalted bool `json:"temp_halted"`
}

// Domains lists every domain known to the known_tlds set along with its
// current bucket level and halt state.
func (a *Admin) Domains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domains, err := a.client.SMembers(ctx, schema.KnownTLDsKey).Result()
	if err != nil {
		a.logger.Error().Err(err).Msg("known_tlds lookup failed")
		http.Error(w, `{"error":"store_unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	statuses := make([]DomainStatus, 0, len(domains))
	for _, domain := range domains {
		tokens, _ := a.client.Get(ctx, schema.TokenBucketKey(domain)).Int64()
		hardHalted, _ := a.client.SIsMember(ctx, schema.HaltedKey, domain).Result()
		tempHaltedCount, _ := a.client.Exists(ctx, schema.TempHaltedKey(domain)).Result()

		statuses = append(statuses, DomainStatus{
			Domain: domain,
			Tokens: tokens,
			HardHalted: hardHalted,
			TempHalted: tempHaltedCount > 0,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statuses)
}
