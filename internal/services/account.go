package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lionswap/accounts/internal/events"
	"github.com/lionswap/accounts/internal/store"
	"github.com/lionswap/accounts/types"
	"go.uber.org/zap"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByHandle(ctx context.Context, handle string) (types.Account, error)
	GetByID(ctx context.Context, id int64) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (types.Account, error)
	List(ctx context.Context, limit, offset int) ([]types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	Update(ctx context.Context, account types.Account) (types.Account, error)
	UpdateFields(ctx context.Context, handle string, update types.AccountUpdate, version int64) (types.Account, error)
	Delete(ctx context.Context, handle string) error
}

// AccountService encapsulates account use-cases. The publisher may be
// nil; lifecycle events are best-effort.
type AccountService struct {
	repo      AccountRepository
	publisher *events.Publisher
	logger    *zap.Logger
}

func NewAccountService(repo AccountRepository, publisher *events.Publisher, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{repo: repo, publisher: publisher, logger: logger}
}

func (s *AccountService) GetByHandle(ctx context.Context, handle string) (types.Account, error) {
	return s.repo.GetByHandle(ctx, handle)
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (types.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AccountService) List(ctx context.Context, limit, offset int) ([]types.Account, error) {
	return s.repo.List(ctx, limit, offset)
}

// maxHandleAttempts bounds the de-duplication suffix loop on create.
const maxHandleAttempts = 100

// Create persists a new account. A taken handle is retried with an
// incrementing numeric suffix until the insert lands.
func (s *AccountService) Create(ctx context.Context, account types.Account) (types.Account, error) {
	created, err := s.createWithUniqueHandle(ctx, account)
	if err != nil {
		return types.Account{}, err
	}
	s.announceCreated(ctx, created)
	return created, nil
}

func (s *AccountService) createWithUniqueHandle(ctx context.Context, account types.Account) (types.Account, error) {
	base := account.Handle
	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		if attempt > 0 {
			account.Handle = fmt.Sprintf("%s_%d", base, attempt)
		}
		created, err := s.repo.Create(ctx, account)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrHandleTaken) {
			return types.Account{}, err
		}
	}
	return types.Account{}, store.ErrHandleExhausted
}

// UpdateFields applies a conditional partial update; version is the
// caller's If-Match token.
func (s *AccountService) UpdateFields(ctx context.Context, handle string, update types.AccountUpdate, version int64) (types.Account, error) {
	return s.repo.UpdateFields(ctx, handle, update, version)
}

// Delete removes the account record directly, without the cross-service
// blocking check. Administrative path only; the composite workflow is
// the public deletion surface.
func (s *AccountService) Delete(ctx context.Context, handle string) error {
	return s.repo.Delete(ctx, handle)
}

// SetAvatarURL records a freshly uploaded avatar URI on the account.
func (s *AccountService) SetAvatarURL(ctx context.Context, handle, uri string) (types.Account, error) {
	account, err := s.repo.GetByHandle(ctx, handle)
	if err != nil {
		return types.Account{}, err
	}
	account.AvatarURL = &uri
	return s.repo.Update(ctx, account)
}

// GoogleClaims are the profile claims returned by the identity
// provider after token exchange.
type GoogleClaims struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// GetOrCreateFromGoogle resolves a sign-in to an account: match by
// provider subject first, then by email (linking the subject), else
// create one with a handle derived from the email local part. Name and
// avatar are backfilled only when previously empty; email follows the
// provider; last-seen is bumped on every sign-in.
func (s *AccountService) GetOrCreateFromGoogle(ctx context.Context, claims GoogleClaims) (types.Account, error) {
	now := time.Now().UTC()

	account, err := s.repo.GetByGoogleID(ctx, claims.Sub)
	if err == nil {
		return s.refreshOnSignIn(ctx, account, claims, now)
	}
	if !isNotFound(err) {
		return types.Account{}, err
	}

	account, err = s.repo.GetByEmail(ctx, claims.Email)
	if err == nil {
		sub := claims.Sub
		account.GoogleID = &sub
		return s.refreshOnSignIn(ctx, account, claims, now)
	}
	if !isNotFound(err) {
		return types.Account{}, err
	}

	handle := handleFromEmail(claims.Email, claims.Sub)
	name := claims.Name
	if name == "" {
		name = handle
	}
	sub := claims.Sub
	account = types.Account{
		Handle:     handle,
		Name:       name,
		Email:      claims.Email,
		GoogleID:   &sub,
		LastSeenAt: &now,
	}
	if claims.Picture != "" {
		picture := claims.Picture
		account.AvatarURL = &picture
	}

	created, err := s.createWithUniqueHandle(ctx, account)
	if err != nil {
		return types.Account{}, err
	}
	s.logger.Info("account created from sign-in",
		zap.String("handle", created.Handle), zap.Int64("user_id", created.ID))
	s.announceCreated(ctx, created)
	return created, nil
}

func (s *AccountService) refreshOnSignIn(ctx context.Context, account types.Account, claims GoogleClaims, now time.Time) (types.Account, error) {
	if claims.Name != "" && account.Name == "" {
		account.Name = claims.Name
	}
	if claims.Picture != "" && account.AvatarURL == nil {
		picture := claims.Picture
		account.AvatarURL = &picture
	}
	if claims.Email != "" && account.Email != claims.Email {
		account.Email = claims.Email
	}
	account.LastSeenAt = &now
	return s.repo.Update(ctx, account)
}

func (s *AccountService) announceCreated(ctx context.Context, account types.Account) {
	if s.publisher == nil {
		return
	}
	event := events.AccountCreated{
		UserID: account.ID,
		Handle: account.Handle,
		Email:  account.Email,
		Name:   account.Name,
	}
	if err := s.publisher.AccountCreated(ctx, event); err != nil {
		s.logger.Warn("account.created publish failed",
			zap.String("handle", account.Handle), zap.Error(err))
	}
}

// handleFromEmail derives the base handle from the email local part,
// falling back to a provider-subject-based handle.
func handleFromEmail(email, sub string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	if len(sub) > 8 {
		sub = sub[:8]
	}
	return "user_" + sub
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
