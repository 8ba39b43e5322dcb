// Package geocode resolves street addresses to coordinates and back, so
// jobs and workers can be placed on the map before matching runs.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

const (
	nominatimBaseURL = "https://nominatim.openstreetmap.org"
	httpTimeout      = 10 * time.Second
	userAgent        = "picopro-clt/1.0"
)

// ErrAddressNotFound is returned when the geocoder has no match for the
// given address or coordinates.
var ErrAddressNotFound = errors.New("address not found")

// Service resolves addresses for job postings and worker profiles.
type Service interface {
	Forward(ctx context.Context, address string) (model.Location, error)
	Reverse(ctx context.Context, loc model.Location) (string, error)
}

// Nominatim is a Service backed by the OpenStreetMap Nominatim API.
// Nominatim's usage policy requires an identifying User-Agent and at most
// one request per second; callers own the rate limiting.
type Nominatim struct {
	baseURL string
	client  *http.Client
}

// NewNominatim constructs a client with a shared HTTP client. baseURL is
// overridable for self-hosted instances and tests; empty means the public
// endpoint.
func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = nominatimBaseURL
	}
	return &Nominatim{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// nominatimResult mirrors one entry of a Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Forward resolves a street address to coordinates. The first (best) match
// wins; no match is ErrAddressNotFound.
func (n *Nominatim) Forward(ctx context.Context, address string) (model.Location, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	var results []nominatimResult
	if err := n.get(ctx, "/search", params, &results); err != nil {
		return model.Location{}, err
	}
	if len(results) == 0 {
		return model.Location{}, ErrAddressNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}
	return model.Location{Latitude: lat, Longitude: lon}, nil
}

// Reverse resolves coordinates to a display address.
func (n *Nominatim) Reverse(ctx context.Context, loc model.Location) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("format", "json")

	var result nominatimResult
	if err := n.get(ctx, "/reverse", params, &result); err != nil {
		return "", err
	}
	if result.DisplayName == "" {
		return "", ErrAddressNotFound
	}
	return result.DisplayName, nil
}

func (n *Nominatim) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := n.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}
