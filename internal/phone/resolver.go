// Package phone resolves listing phone numbers via the reveal-phone API.
package phone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"autoria-harvester/internal/fetcher"
	"autoria-harvester/internal/harvest"
	"autoria-harvester/internal/metrics"
)

var nonDigit = regexp.MustCompile(`\D`)

// Config controls Resolver behavior.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Resolver calls the phone lookup endpoint with the keys extracted from a
// listing page. Every failure mode yields ok == false; nothing propagates.
type Resolver struct {
	http   *http.Client
	base   string
	logger *zap.Logger
}

// phonesResponse mirrors the lookup endpoint's JSON payload.
type phonesResponse struct {
	Phones []struct {
		PhoneFormatted string `json:"phoneFormatted"`
	} `json:"phones"`
}

// New constructs a Resolver.
func New(cfg Config, logger *zap.Logger) *Resolver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://auto.ria.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Resolver{
		http:   &http.Client{Timeout: cfg.Timeout},
		base:   cfg.BaseURL,
		logger: logger,
	}
}

// Resolve exchanges the lookup keys for a digits-only phone number. Both
// the listing id and the hash are required; without them no call is made.
func (r *Resolver) Resolve(ctx context.Context, lookup harvest.PhoneLookup) (string, bool) {
	if lookup.ListingID == "" || lookup.Hash == "" {
		return "", false
	}

	endpoint := fmt.Sprintf("%s/users/phones/%s?hash=%s&expires=%s",
		r.base,
		url.PathEscape(lookup.ListingID),
		url.QueryEscape(lookup.Hash),
		url.QueryEscape(lookup.Expires),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.logger.Debug("phone lookup request", zap.Error(err))
		return "", false
	}
	for k, v := range fetcher.RandomProfile() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Debug("phone lookup call", zap.String("listing_id", lookup.ListingID), zap.Error(err))
		metrics.ObservePhoneLookup("failed")
		return "", false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("phone lookup status",
			zap.String("listing_id", lookup.ListingID),
			zap.Int("status", resp.StatusCode),
		)
		metrics.ObservePhoneLookup("failed")
		return "", false
	}

	var payload phonesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.logger.Debug("phone lookup decode", zap.Error(err))
		metrics.ObservePhoneLookup("failed")
		return "", false
	}
	if len(payload.Phones) == 0 {
		metrics.ObservePhoneLookup("failed")
		return "", false
	}

	digits := nonDigit.ReplaceAllString(payload.Phones[0].PhoneFormatted, "")
	if digits == "" {
		metrics.ObservePhoneLookup("failed")
		return "", false
	}
	metrics.ObservePhoneLookup("ok")
	return digits, true
}
