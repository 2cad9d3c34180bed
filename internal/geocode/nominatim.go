package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"backend-journitag/internal/logger"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "JourniTag/1.0"
	defaultTimeout   = 10 * time.Second
)

// Nominatim is a ReverseGeocoder backed by an OpenStreetMap Nominatim
// server. All calls made through the same value share one limiter, so the
// process never sends more than one request per second.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	log       *slog.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

type NominatimOption func(*Nominatim)

func WithHTTPClient(c *http.Client) NominatimOption {
	return func(n *Nominatim) { n.client = c }
}

// WithLimiter replaces the one-per-second limiter. Tests use rate.Inf.
func WithLimiter(l *rate.Limiter) NominatimOption {
	return func(n *Nominatim) { n.limiter = l }
}

func WithLogger(l *slog.Logger) NominatimOption {
	return func(n *Nominatim) { n.log = l }
}

func NewNominatim(baseURL, userAgent string, timeout time.Duration, opts ...NominatimOption) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	n := &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = logger.OrDefault(n.log)
	return n
}

type nominatimResponse struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	// Hold the lock across wait and request so callers are served one at a
	// time, one second apart.
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.limiter.Wait(ctx); err != nil {
		return Place{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("zoom", "18")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("reverse geocode request failed", "lat", lat, "lon", lon, "error", err)
		return Place{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.log.Warn("reverse geocode bad status", "lat", lat, "lon", lon, "status", resp.StatusCode)
		return Place{}, fmt.Errorf("%w: status %d", ErrNoResult, resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("%w: decode: %v", ErrNoResult, err)
	}
	if body.Error != "" {
		return Place{}, fmt.Errorf("%w: %s", ErrNoResult, body.Error)
	}
	if body.DisplayName == "" && len(body.Address) == 0 && body.Name == "" {
		return Place{}, ErrNoResult
	}
	return toPlace(body), nil
}

func toPlace(r nominatimResponse) Place {
	addr := r.Address
	if addr == nil {
		addr = map[string]string{}
	}
	return Place{
		Name:        placeName(r.Name, addr),
		Address:     formatAddress(addr),
		City:        city(addr),
		State:       addr["state"],
		Country:     addr["country"],
		CountryCode: addr["country_code"],
		Postcode:    addr["postcode"],
		DisplayName: r.DisplayName,
		Components:  addr,
	}
}

func placeName(name string, addr map[string]string) string {
	if name != "" {
		return name
	}
	for _, key := range []string{"tourism", "amenity", "building", "neighbourhood", "suburb", "city", "town"} {
		if v := addr[key]; v != "" {
			return v
		}
	}
	return unknownName
}

func city(addr map[string]string) string {
	for _, key := range []string{"city", "town", "village", "municipality"} {
		if v := addr[key]; v != "" {
			return v
		}
	}
	return ""
}

func formatAddress(addr map[string]string) string {
	var parts []string
	for _, p := range []string{addr["house_number"], addr["road"], city(addr), addr["state"], addr["postcode"]} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
