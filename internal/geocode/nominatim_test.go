package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"backend-journitag/internal/logger"

	"golang.org/x/time/rate"
)

const empireStateResponse = `{
	"name": "Empire State Building",
	"display_name": "Empire State Building, 350, 5th Avenue, Manhattan, New York, 10118, United States",
	"address": {
		"tourism": "Empire State Building",
		"house_number": "350",
		"road": "5th Avenue",
		"city": "New York",
		"state": "New York",
		"postcode": "10118",
		"country": "United States",
		"country_code": "us"
	}
}`

func newTestNominatim(url string) *Nominatim {
	return NewNominatim(url, "journitag-test", time.Second,
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithLogger(logger.Discard()))
}

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/reverse" || q.Get("lat") != "40.7484" || q.Get("lon") != "-73.9857" ||
			q.Get("format") != "json" || q.Get("addressdetails") != "1" || q.Get("zoom") != "18" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		if r.Header.Get("User-Agent") != "journitag-test" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(empireStateResponse))
	}))
	defer srv.Close()

	place, err := newTestNominatim(srv.URL).Reverse(context.Background(), 40.7484, -73.9857)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if place.Name != "Empire State Building" {
		t.Fatalf("name = %q", place.Name)
	}
	if place.Address != "350, 5th Avenue, New York, New York, 10118" {
		t.Fatalf("address = %q", place.Address)
	}
	if place.City != "New York" || place.CountryCode != "us" {
		t.Fatalf("unexpected place: %+v", place)
	}
}

func TestNominatimNameFallbacks(t *testing.T) {
	cases := []struct {
		name string
		resp nominatimResponse
		want string
	}{
		{"amenity", nominatimResponse{Address: map[string]string{"amenity": "Cafe", "city": "Paris"}}, "Cafe"},
		{"suburb", nominatimResponse{Address: map[string]string{"suburb": "Kemang", "city": "Jakarta"}}, "Kemang"},
		{"town", nominatimResponse{Address: map[string]string{"town": "Ubud"}}, "Ubud"},
		{"unknown", nominatimResponse{Address: map[string]string{"country": "Iceland"}}, unknownName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := toPlace(tc.resp).Name; got != tc.want {
				t.Fatalf("name = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatAddressUsesVillage(t *testing.T) {
	got := formatAddress(map[string]string{"road": "Jl. Raya", "village": "Tegallalang", "state": "Bali"})
	if got != "Jl. Raya, Tegallalang, Bali" {
		t.Fatalf("address = %q", got)
	}
}

func TestNominatimNoResult(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"error field": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
		},
		"bad status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		"empty body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := newTestNominatim(srv.URL).Reverse(context.Background(), 1, 2)
			if !errors.Is(err, ErrNoResult) {
				t.Fatalf("expected ErrNoResult, got %v", err)
			}
		})
	}
}

func TestNominatimUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestNominatim(url).Reverse(context.Background(), 1, 2)
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestNominatimTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	n := NewNominatim(srv.URL, "", 50*time.Millisecond,
		WithLimiter(rate.NewLimiter(rate.Inf, 1)), WithLogger(logger.Discard()))
	_, err := n.Reverse(context.Background(), 1, 2)
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestNominatimSerializesCalls(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = w.Write([]byte(empireStateResponse))
	}))
	defer srv.Close()

	n := newTestNominatim(srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = n.Reverse(context.Background(), 40.7484, -73.9857)
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("expected serialized calls, saw %d concurrent", maxInFlight)
	}
}

func TestNominatimRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(empireStateResponse))
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "", time.Second,
		WithLimiter(rate.NewLimiter(rate.Every(100*time.Millisecond), 1)), WithLogger(logger.Discard()))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := n.Reverse(context.Background(), 1, 2); err != nil {
			t.Fatalf("reverse: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 190*time.Millisecond {
		t.Fatalf("calls were not spaced out: %v", elapsed)
	}
}

func TestNominatimCancelledContext(t *testing.T) {
	n := NewNominatim("http://127.0.0.1:1", "", time.Second, WithLogger(logger.Discard()))
	// Drain the single burst token so Wait has to block.
	n.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := n.Reverse(ctx, 1, 2); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}
