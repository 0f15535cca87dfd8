package services

import (
	"context"
	"fmt"

	"github.com/lionswap/accounts/internal/clients"
	"github.com/lionswap/accounts/internal/events"
	"github.com/lionswap/accounts/internal/storage"
	"github.com/lionswap/accounts/internal/workers"
	"github.com/lionswap/accounts/types"
	"go.uber.org/zap"
)

// IdentityStore defines the identity-store (ms1) calls the deletion
// workflow needs.
type IdentityStore interface {
	GetUser(ctx context.Context, handle string) (clients.UserLookup, error)
	DeleteUser(ctx context.Context, handle string) (clients.DeleteResult, error)
}

// CatalogStore defines the catalog-store (ms2) calls the deletion
// workflow needs.
type CatalogStore interface {
	ListItemsBySeller(ctx context.Context, sellerID int64) ([]types.Listing, error)
	DeleteItemsBySeller(ctx context.Context, sellerID int64) (clients.DeleteResult, error)
}

// OutcomeKind classifies the composite deletion result.
type OutcomeKind int

const (
	// OutcomeDeleted means both legs succeeded or were no-ops.
	OutcomeDeleted OutcomeKind = iota
	// OutcomeNotFound means the account does not exist; no further
	// calls were issued.
	OutcomeNotFound
	// OutcomeInconsistent means the identity store returned a record
	// without an owner identifier. A broken upstream invariant, so a
	// server fault rather than a client one.
	OutcomeInconsistent
	// OutcomeUnavailable means an upstream could not be reached before
	// any destructive call was issued.
	OutcomeUnavailable
	// OutcomeConflict means blocking listings prevent deletion.
	OutcomeConflict
	// OutcomePartial means destructive calls were issued and at least
	// one leg failed. Per-leg detail is preserved so callers can retry
	// exactly the failed leg; deletions are idempotent.
	OutcomePartial
)

// Leg statuses as surfaced to callers.
const (
	LegDeleted  = "deleted"
	LegNone     = "none"
	LegNotFound = "not_found"
)

// LegResult is the outcome of one deletion sub-operation.
type LegResult struct {
	// Status is "deleted", "none", "not_found", "failed:<code>" or
	// "error:<message>".
	Status string
	// OK marks the success statuses, including the nothing-to-do ones.
	OK bool
}

// DeletionOutcome is the transient aggregate of one orchestration call.
type DeletionOutcome struct {
	Kind         OutcomeKind
	Handle       string
	OwnerID      int64
	BlockedItems []int64
	Identity     LegResult
	Catalog      LegResult
	Errors       []string
}

// CompositeService coordinates account deletion across the identity and
// catalog stores. Publisher and avatars may be nil; side effects on them
// are best-effort and never change the outcome.
type CompositeService struct {
	identity  IdentityStore
	catalog   CatalogStore
	pool      *workers.Pool
	publisher *events.Publisher
	avatars   *storage.AvatarStore
	logger    *zap.Logger
}

func NewCompositeService(
	identity IdentityStore,
	catalog CatalogStore,
	pool *workers.Pool,
	publisher *events.Publisher,
	avatars *storage.AvatarStore,
	logger *zap.Logger,
) *CompositeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompositeService{
		identity:  identity,
		catalog:   catalog,
		pool:      pool,
		publisher: publisher,
		avatars:   avatars,
		logger:    logger,
	}
}

// DeleteAccountAndListings runs the composite deletion workflow:
// resolve the account, enumerate its listings, enforce the blocking
// invariant, then delete from both stores in parallel and reconcile.
func (s *CompositeService) DeleteAccountAndListings(ctx context.Context, handle string) DeletionOutcome {
	outcome := DeletionOutcome{Handle: handle}

	// Phase 1: resolve and verify existence. Failing here issues no
	// calls about a nonexistent owner.
	lookup, err := s.identity.GetUser(ctx, handle)
	if err != nil {
		outcome.Kind = OutcomeUnavailable
		outcome.Errors = append(outcome.Errors, err.Error())
		return outcome
	}
	if !lookup.Found {
		outcome.Kind = OutcomeNotFound
		return outcome
	}
	if lookup.User.UserID == 0 {
		outcome.Kind = OutcomeInconsistent
		outcome.Errors = append(outcome.Errors, "identity record has no owner identifier")
		return outcome
	}
	outcome.OwnerID = lookup.User.UserID

	// Phase 2: enumerate owned listings. Without a definitive answer we
	// must not delete the identity record, or active listings could be
	// orphaned.
	listings, err := s.catalog.ListItemsBySeller(ctx, outcome.OwnerID)
	if err != nil {
		outcome.Kind = OutcomeUnavailable
		outcome.Errors = append(outcome.Errors, err.Error())
		return outcome
	}

	// Phase 3: blocking invariant. In-flight commerce wins.
	for _, listing := range listings {
		if listing.Blocking() {
			outcome.BlockedItems = append(outcome.BlockedItems, listing.ItemID)
		}
	}
	if len(outcome.BlockedItems) > 0 {
		outcome.Kind = OutcomeConflict
		return outcome
	}

	// Phase 4: parallel dual deletion. Both legs are submitted before
	// either is awaited, and neither cancels the other; reconciliation
	// absorbs partial failure.
	identityCh := make(chan LegResult, 1)
	catalogCh := make(chan LegResult, 1)
	s.pool.Submit(func() {
		catalogCh <- s.catalogLeg(ctx, outcome.OwnerID)
	})
	s.pool.Submit(func() {
		identityCh <- s.identityLeg(ctx, handle)
	})
	outcome.Catalog = <-catalogCh
	outcome.Identity = <-identityCh

	// Phase 5: reconcile.
	if !outcome.Identity.OK {
		outcome.Errors = append(outcome.Errors, "identity leg: "+outcome.Identity.Status)
	}
	if !outcome.Catalog.OK {
		outcome.Errors = append(outcome.Errors, "catalog leg: "+outcome.Catalog.Status)
	}
	if outcome.Identity.OK && outcome.Catalog.OK {
		outcome.Kind = OutcomeDeleted
	} else {
		outcome.Kind = OutcomePartial
	}

	s.logger.Info("composite deletion reconciled",
		zap.String("handle", handle),
		zap.Int64("owner_id", outcome.OwnerID),
		zap.String("identity_leg", outcome.Identity.Status),
		zap.String("catalog_leg", outcome.Catalog.Status),
	)

	if outcome.Identity.Status == LegDeleted {
		s.afterIdentityDeleted(ctx, outcome)
	}
	return outcome
}

func (s *CompositeService) identityLeg(ctx context.Context, handle string) LegResult {
	result, err := s.identity.DeleteUser(ctx, handle)
	if err != nil {
		return LegResult{Status: "error:" + err.Error()}
	}
	switch {
	case result.StatusCode == 200 || result.StatusCode == 204:
		return LegResult{Status: LegDeleted, OK: true}
	case result.StatusCode == 404:
		return LegResult{Status: LegNotFound, OK: true}
	default:
		return LegResult{Status: fmt.Sprintf("failed:%d", result.StatusCode)}
	}
}

func (s *CompositeService) catalogLeg(ctx context.Context, ownerID int64) LegResult {
	result, err := s.catalog.DeleteItemsBySeller(ctx, ownerID)
	if err != nil {
		return LegResult{Status: "error:" + err.Error()}
	}
	switch {
	case result.StatusCode == 200:
		return LegResult{Status: LegDeleted, OK: true}
	case result.StatusCode == 204 || result.StatusCode == 404:
		return LegResult{Status: LegNone, OK: true}
	default:
		return LegResult{Status: fmt.Sprintf("failed:%d", result.StatusCode)}
	}
}

// afterIdentityDeleted runs the best-effort side effects once the
// identity record is gone: drop the stored avatar and announce the
// deletion.
func (s *CompositeService) afterIdentityDeleted(ctx context.Context, outcome DeletionOutcome) {
	if s.avatars != nil {
		if err := s.avatars.Delete(ctx, outcome.OwnerID); err != nil {
			s.logger.Warn("avatar cleanup failed",
				zap.Int64("owner_id", outcome.OwnerID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		event := events.AccountDeleted{
			Handle:   outcome.Handle,
			UserID:   outcome.OwnerID,
			Identity: outcome.Identity.Status,
			Catalog:  outcome.Catalog.Status,
		}
		if err := s.publisher.AccountDeleted(ctx, event); err != nil {
			s.logger.Warn("account.deleted publish failed",
				zap.String("handle", outcome.Handle), zap.Error(err))
		}
	}
}
