package geocode_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fernandolim41/picopro-clt/internal/geocode"
	"github.com/fernandolim41/picopro-clt/internal/model"
)

func TestForward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Av. Paulista 1000, São Paulo" {
			t.Errorf("q = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent, required by the usage policy")
		}
		w.Write([]byte(`[{"lat":"-23.5505","lon":"-46.6333","display_name":"Avenida Paulista"}]`))
	}))
	defer srv.Close()

	loc, err := geocode.NewNominatim(srv.URL).Forward(context.Background(), "Av. Paulista 1000, São Paulo")
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if loc.Latitude != -23.5505 || loc.Longitude != -46.6333 {
		t.Errorf("location = %+v", loc)
	}
}

func TestForward_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := geocode.NewNominatim(srv.URL).Forward(context.Background(), "nowhere at all")
	if !errors.Is(err, geocode.ErrAddressNotFound) {
		t.Errorf("got %v, want ErrAddressNotFound", err)
	}
}

func TestForward_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := geocode.NewNominatim(srv.URL).Forward(context.Background(), "anywhere")
	if err == nil {
		t.Fatal("want error on non-200 response")
	}
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s, want /reverse", r.URL.Path)
		}
		w.Write([]byte(`{"lat":"-23.5505","lon":"-46.6333","display_name":"Avenida Paulista, São Paulo"}`))
	}))
	defer srv.Close()

	addr, err := geocode.NewNominatim(srv.URL).Reverse(context.Background(), model.Location{Latitude: -23.5505, Longitude: -46.6333})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if addr != "Avenida Paulista, São Paulo" {
		t.Errorf("address = %q", addr)
	}
}
