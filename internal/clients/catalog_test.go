package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lionswap/accounts/types"
)

func TestListItemsBySellerBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("seller_id"); got != "42" {
			t.Errorf("expected seller_id=42, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"item_id": 7, "seller_id": 42, "status": "available"}]`))
	}))
	defer srv.Close()

	listings, err := NewCatalogClient(srv.URL).ListItemsBySeller(context.Background(), 42)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected one listing, got %d", len(listings))
	}
	want := types.Listing{ItemID: 7, SellerID: 42, Status: types.ListingAvailable}
	if listings[0] != want {
		t.Errorf("expected %+v, got %+v", want, listings[0])
	}
}

func TestListItemsBySellerEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [{"id": 9, "seller_id": 42, "status": "reserved"}]}`))
	}))
	defer srv.Close()

	listings, err := NewCatalogClient(srv.URL).ListItemsBySeller(context.Background(), 42)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected one listing, got %d", len(listings))
	}
	if listings[0].ItemID != 9 {
		t.Errorf("the id key must be honored as a fallback, got %+v", listings[0])
	}
	if !listings[0].Blocking() {
		t.Error("a reserved listing must be blocking")
	}
}

func TestListItemsBySellerEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	listings, err := NewCatalogClient(srv.URL).ListItemsBySeller(context.Background(), 42)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("expected no listings, got %v", listings)
	}
}

func TestListItemsBySellerUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewCatalogClient(srv.URL).ListItemsBySeller(context.Background(), 42)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected a StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", statusErr.StatusCode)
	}
}

func TestListItemsBySellerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewCatalogClient(srv.URL).ListItemsBySeller(context.Background(), 42)
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected an UnavailableError, got %v", err)
	}
}

func TestDeleteItemsBySellerStatusPreserved(t *testing.T) {
	for _, status := range []int{200, 204, 404, 502} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("unexpected method %s", r.Method)
			}
			if got := r.URL.Query().Get("seller_id"); got != "42" {
				t.Errorf("expected seller_id=42, got %q", got)
			}
			w.WriteHeader(status)
		}))

		result, err := NewCatalogClient(srv.URL).DeleteItemsBySeller(context.Background(), 42)
		srv.Close()
		if err != nil {
			t.Fatalf("status %d must come back as data, got error %v", status, err)
		}
		if result.StatusCode != status {
			t.Errorf("expected status %d preserved, got %d", status, result.StatusCode)
		}
	}
}

func TestDeleteItemBodyCaptured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"deleted": 1}`))
	}))
	defer srv.Close()

	result, err := NewCatalogClient(srv.URL).DeleteItem(context.Background(), 7)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if string(result.Body) != `{"deleted": 1}` {
		t.Errorf("expected the body captured, got %q", result.Body)
	}
}
