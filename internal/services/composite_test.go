package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lionswap/accounts/internal/clients"
	"github.com/lionswap/accounts/internal/workers"
	"github.com/lionswap/accounts/types"
)

type fakeIdentityStore struct {
	mu sync.Mutex

	lookup    clients.UserLookup
	lookupErr error

	deleteResult clients.DeleteResult
	deleteErr    error

	getCalls    int
	deleteCalls int
}

func (f *fakeIdentityStore) GetUser(ctx context.Context, handle string) (clients.UserLookup, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	return f.lookup, f.lookupErr
}

func (f *fakeIdentityStore) DeleteUser(ctx context.Context, handle string) (clients.DeleteResult, error) {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	return f.deleteResult, f.deleteErr
}

type fakeCatalogStore struct {
	mu sync.Mutex

	listings []types.Listing
	listErr  error

	deleteResult clients.DeleteResult
	deleteErr    error

	listCalls   int
	deleteCalls int
}

func (f *fakeCatalogStore) ListItemsBySeller(ctx context.Context, sellerID int64) ([]types.Listing, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.listings, f.listErr
}

func (f *fakeCatalogStore) DeleteItemsBySeller(ctx context.Context, sellerID int64) (clients.DeleteResult, error) {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	return f.deleteResult, f.deleteErr
}

func newTestComposite(t *testing.T, identity *fakeIdentityStore, catalog *fakeCatalogStore) *CompositeService {
	t.Helper()
	pool := workers.NewPool(4)
	t.Cleanup(pool.Close)
	return NewCompositeService(identity, catalog, pool, nil, nil, nil)
}

func foundUser(id int64, handle string) clients.UserLookup {
	return clients.UserLookup{
		Found: true,
		User:  clients.RemoteUser{UserID: id, Handle: handle},
	}
}

func TestDeleteAccountAndListingsSuccess(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup:       foundUser(42, "abc123"),
		deleteResult: clients.DeleteResult{StatusCode: 200},
	}
	catalog := &fakeCatalogStore{
		listings:     []types.Listing{{ItemID: 7, SellerID: 42, Status: types.ListingAvailable}},
		deleteResult: clients.DeleteResult{StatusCode: 200},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeDeleted {
		t.Fatalf("expected OutcomeDeleted, got %v (errors: %v)", outcome.Kind, outcome.Errors)
	}
	if outcome.OwnerID != 42 {
		t.Errorf("expected owner id 42, got %d", outcome.OwnerID)
	}
	if outcome.Identity.Status != LegDeleted || !outcome.Identity.OK {
		t.Errorf("unexpected identity leg: %+v", outcome.Identity)
	}
	if outcome.Catalog.Status != LegDeleted || !outcome.Catalog.OK {
		t.Errorf("unexpected catalog leg: %+v", outcome.Catalog)
	}
	if identity.deleteCalls != 1 {
		t.Errorf("expected exactly one identity delete, got %d", identity.deleteCalls)
	}
	if catalog.deleteCalls != 1 {
		t.Errorf("expected exactly one catalog delete, got %d", catalog.deleteCalls)
	}
}

func TestDeleteAccountAndListingsNotFound(t *testing.T) {
	identity := &fakeIdentityStore{lookup: clients.UserLookup{Found: false}}
	catalog := &fakeCatalogStore{}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "ghost")

	if outcome.Kind != OutcomeNotFound {
		t.Fatalf("expected OutcomeNotFound, got %v", outcome.Kind)
	}
	if catalog.listCalls != 0 || catalog.deleteCalls != 0 {
		t.Errorf("catalog must not be called for a missing account, got list=%d delete=%d",
			catalog.listCalls, catalog.deleteCalls)
	}
	if identity.deleteCalls != 0 {
		t.Errorf("identity delete must not be called for a missing account, got %d", identity.deleteCalls)
	}
}

func TestDeleteAccountAndListingsMissingOwnerID(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup: clients.UserLookup{Found: true, User: clients.RemoteUser{Handle: "abc123"}},
	}
	catalog := &fakeCatalogStore{}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeInconsistent {
		t.Fatalf("expected OutcomeInconsistent, got %v", outcome.Kind)
	}
	if catalog.listCalls != 0 || catalog.deleteCalls != 0 || identity.deleteCalls != 0 {
		t.Error("no further calls may follow an identity record without an owner id")
	}
}

func TestDeleteAccountAndListingsIdentityUnavailable(t *testing.T) {
	identity := &fakeIdentityStore{
		lookupErr: &clients.UnavailableError{Service: "identity store", Err: errors.New("connection refused")},
	}
	catalog := &fakeCatalogStore{}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeUnavailable {
		t.Fatalf("expected OutcomeUnavailable, got %v", outcome.Kind)
	}
	if len(outcome.Errors) == 0 {
		t.Error("expected the transport error to be surfaced")
	}
	if catalog.deleteCalls != 0 || identity.deleteCalls != 0 {
		t.Error("no destructive calls may be issued when resolution fails")
	}
}

func TestDeleteAccountAndListingsCatalogListUnavailable(t *testing.T) {
	identity := &fakeIdentityStore{lookup: foundUser(42, "abc123")}
	catalog := &fakeCatalogStore{
		listErr: &clients.UnavailableError{Service: "catalog store", Err: errors.New("timeout")},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeUnavailable {
		t.Fatalf("expected OutcomeUnavailable, got %v", outcome.Kind)
	}
	if catalog.deleteCalls != 0 || identity.deleteCalls != 0 {
		t.Error("no destructive calls may be issued when enumeration fails")
	}
}

func TestDeleteAccountAndListingsBlockedByReservation(t *testing.T) {
	identity := &fakeIdentityStore{lookup: foundUser(42, "abc123")}
	catalog := &fakeCatalogStore{
		listings: []types.Listing{{ItemID: 7, SellerID: 42, Status: types.ListingReserved}},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeConflict {
		t.Fatalf("expected OutcomeConflict, got %v", outcome.Kind)
	}
	if len(outcome.BlockedItems) != 1 || outcome.BlockedItems[0] != 7 {
		t.Errorf("expected blocked items [7], got %v", outcome.BlockedItems)
	}
	if catalog.deleteCalls != 0 || identity.deleteCalls != 0 {
		t.Error("a blocked deletion must issue no destructive calls")
	}
}

func TestDeleteAccountAndListingsCollectsAllBlockers(t *testing.T) {
	identity := &fakeIdentityStore{lookup: foundUser(42, "abc123")}
	catalog := &fakeCatalogStore{
		listings: []types.Listing{
			{ItemID: 3, SellerID: 42, Status: types.ListingAvailable},
			{ItemID: 7, SellerID: 42, Status: types.ListingReserved},
			{ItemID: 9, SellerID: 42, Status: types.ListingSold},
		},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeConflict {
		t.Fatalf("expected OutcomeConflict, got %v", outcome.Kind)
	}
	want := []int64{7, 9}
	if len(outcome.BlockedItems) != len(want) {
		t.Fatalf("expected blocked items %v, got %v", want, outcome.BlockedItems)
	}
	for i, id := range want {
		if outcome.BlockedItems[i] != id {
			t.Errorf("expected blocked items %v, got %v", want, outcome.BlockedItems)
		}
	}
}

func TestDeleteAccountAndListingsNoListings(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup:       foundUser(42, "abc123"),
		deleteResult: clients.DeleteResult{StatusCode: 204},
	}
	catalog := &fakeCatalogStore{
		deleteResult: clients.DeleteResult{StatusCode: 404},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeDeleted {
		t.Fatalf("expected OutcomeDeleted, got %v (errors: %v)", outcome.Kind, outcome.Errors)
	}
	if outcome.Identity.Status != LegDeleted {
		t.Errorf("expected identity leg deleted, got %q", outcome.Identity.Status)
	}
	if outcome.Catalog.Status != LegNone {
		t.Errorf("expected catalog leg none, got %q", outcome.Catalog.Status)
	}
	if identity.deleteCalls != 1 || catalog.deleteCalls != 1 {
		t.Errorf("both legs must be attempted exactly once, got identity=%d catalog=%d",
			identity.deleteCalls, catalog.deleteCalls)
	}
}

func TestDeleteAccountAndListingsIdentityLegFails(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup:       foundUser(42, "abc123"),
		deleteResult: clients.DeleteResult{StatusCode: 500},
	}
	catalog := &fakeCatalogStore{
		listings:     []types.Listing{{ItemID: 7, SellerID: 42, Status: types.ListingAvailable}},
		deleteResult: clients.DeleteResult{StatusCode: 200},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomePartial {
		t.Fatalf("expected OutcomePartial, got %v", outcome.Kind)
	}
	if outcome.Identity.Status != "failed:500" || outcome.Identity.OK {
		t.Errorf("unexpected identity leg: %+v", outcome.Identity)
	}
	if outcome.Catalog.Status != LegDeleted || !outcome.Catalog.OK {
		t.Errorf("catalog leg must be preserved independently, got %+v", outcome.Catalog)
	}
	if len(outcome.Errors) != 1 || !strings.Contains(outcome.Errors[0], "identity leg") {
		t.Errorf("expected an identity-leg error, got %v", outcome.Errors)
	}
	if catalog.deleteCalls != 1 {
		t.Errorf("the catalog leg must still be attempted, got %d calls", catalog.deleteCalls)
	}
}

func TestDeleteAccountAndListingsCatalogLegFails(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup:       foundUser(42, "abc123"),
		deleteResult: clients.DeleteResult{StatusCode: 200},
	}
	catalog := &fakeCatalogStore{
		listings:  []types.Listing{{ItemID: 7, SellerID: 42, Status: types.ListingAvailable}},
		deleteErr: &clients.UnavailableError{Service: "catalog store", Err: errors.New("timeout")},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomePartial {
		t.Fatalf("expected OutcomePartial, got %v", outcome.Kind)
	}
	if outcome.Identity.Status != LegDeleted || !outcome.Identity.OK {
		t.Errorf("identity leg must be preserved independently, got %+v", outcome.Identity)
	}
	if !strings.HasPrefix(outcome.Catalog.Status, "error:") || outcome.Catalog.OK {
		t.Errorf("unexpected catalog leg: %+v", outcome.Catalog)
	}
	if identity.deleteCalls != 1 {
		t.Errorf("the identity leg must still be attempted, got %d calls", identity.deleteCalls)
	}
}

func TestDeleteAccountAndListingsBothLegsFail(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup:    foundUser(42, "abc123"),
		deleteErr: errors.New("connection reset"),
	}
	catalog := &fakeCatalogStore{
		deleteResult: clients.DeleteResult{StatusCode: 502},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomePartial {
		t.Fatalf("expected OutcomePartial, got %v", outcome.Kind)
	}
	if len(outcome.Errors) != 2 {
		t.Errorf("expected both leg errors recorded, got %v", outcome.Errors)
	}
}

func TestDeleteAccountAndListingsIdentityAlreadyGone(t *testing.T) {
	identity := &fakeIdentityStore{
		lookup:       foundUser(42, "abc123"),
		deleteResult: clients.DeleteResult{StatusCode: 404},
	}
	catalog := &fakeCatalogStore{
		deleteResult: clients.DeleteResult{StatusCode: 200},
	}
	svc := newTestComposite(t, identity, catalog)

	outcome := svc.DeleteAccountAndListings(context.Background(), "abc123")

	if outcome.Kind != OutcomeDeleted {
		t.Fatalf("a 404 on the identity leg is a no-op success, got %v (errors: %v)",
			outcome.Kind, outcome.Errors)
	}
	if outcome.Identity.Status != LegNotFound {
		t.Errorf("expected identity leg not_found, got %q", outcome.Identity.Status)
	}
}

func TestCatalogLegIdempotent(t *testing.T) {
	catalog := &fakeCatalogStore{
		deleteResult: clients.DeleteResult{StatusCode: 404},
	}
	svc := newTestComposite(t, &fakeIdentityStore{}, catalog)

	for i := 0; i < 2; i++ {
		leg := svc.catalogLeg(context.Background(), 42)
		if leg.Status != LegNone || !leg.OK {
			t.Fatalf("repeat catalog deletion must stay a no-op success, got %+v on call %d", leg, i+1)
		}
	}
	if catalog.deleteCalls != 2 {
		t.Errorf("expected two delete calls, got %d", catalog.deleteCalls)
	}
}
