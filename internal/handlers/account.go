package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lionswap/accounts/internal/services"
	"github.com/lionswap/accounts/internal/storage"
	"github.com/lionswap/accounts/internal/store"
	"github.com/lionswap/accounts/types"
)

const (
	maxAvatarBytes     = 8 << 20
	formFieldAvatar    = "avatar"
	maxAvatarFormParse = 16 << 20
)

// AccountHandler provides HTTP handlers for account records. The
// avatar store may be nil, in which case uploads are rejected.
type AccountHandler struct {
	accountService *services.AccountService
	avatars        *storage.AvatarStore
}

func NewAccountHandler(accountService *services.AccountService, avatars *storage.AvatarStore) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		avatars:        avatars,
	}
}

// AccountRouter registers account routes on the given router.
func AccountRouter(r chi.Router, accountService *services.AccountService, avatars *storage.AvatarStore) {
	handler := NewAccountHandler(accountService, avatars)

	r.Get("/", handler.ListAccounts)
	r.Post("/", handler.CreateAccount)
	r.Route("/{handle}", func(r chi.Router) {
		r.Get("/", handler.GetAccount)
		r.Put("/", handler.UpdateAccount)
		r.Delete("/", handler.DeleteAccount)
		r.Put("/avatar", handler.UploadAvatar)
	})
}

// CreateAccountRequest is the account creation payload.
type CreateAccountRequest struct {
	Handle           string  `json:"uni"`
	Name             string  `json:"student_name"`
	Department       *string `json:"dept_name,omitempty"`
	Email            string  `json:"email"`
	Phone            *string `json:"phone,omitempty"`
	AvatarURL        *string `json:"avatar_url,omitempty"`
	CredibilityScore float64 `json:"credibility_score"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListAccounts returns accounts ordered by id, paginated with limit and
// offset query parameters.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	accounts, err := h.accountService.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// GetAccount returns an account by handle. The version token rides the
// ETag header for conditional updates.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	account, err := h.accountService.GetByHandle(r.Context(), handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	w.Header().Set("ETag", etagValue(account))
	writeJSON(w, http.StatusOK, account)
}

// CreateAccount creates an account directly (non-OAuth path). The
// handle is suffix-de-duplicated when taken.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Handle = strings.TrimSpace(req.Handle)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Handle == "" || req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "uni, student_name and email are required")
		return
	}
	if req.CredibilityScore < 0 {
		writeError(w, http.StatusBadRequest, "credibility_score must not be negative")
		return
	}

	created, err := h.accountService.Create(r.Context(), types.Account{
		Handle:           req.Handle,
		Name:             req.Name,
		Department:       req.Department,
		Email:            req.Email,
		Phone:            req.Phone,
		AvatarURL:        req.AvatarURL,
		CredibilityScore: req.CredibilityScore,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	w.Header().Set("ETag", etagValue(created))
	writeJSON(w, http.StatusCreated, created)
}

// UpdateAccount applies a partial update. The If-Match header must
// carry the version token from a prior read: absent yields 428, stale
// yields 412.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	version, ok, err := ifMatchVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid If-Match header")
		return
	}
	if !ok {
		writeError(w, http.StatusPreconditionRequired, "If-Match header is required")
		return
	}

	var update types.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if update.CredibilityScore != nil && *update.CredibilityScore < 0 {
		writeError(w, http.StatusBadRequest, "credibility_score must not be negative")
		return
	}

	updated, err := h.accountService.UpdateFields(r.Context(), handle, update, version)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, store.ErrVersionMismatch):
			writeError(w, http.StatusPreconditionFailed, "version token is stale")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	w.Header().Set("ETag", etagValue(updated))
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAccount removes the local record directly. This administrative
// path skips the cross-service blocking check; callers wanting the full
// workflow use the composite endpoint.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	if err := h.accountService.Delete(r.Context(), handle); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadAvatar stores an avatar image and records its URI.
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		writeError(w, http.StatusNotImplemented, "avatar storage is not configured")
		return
	}

	handle := chi.URLParam(r, "handle")
	account, err := h.accountService.GetByHandle(r.Context(), handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarFormParse); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "avatar file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	uri, err := h.avatars.Put(r.Context(), account.ID, file, header.Size, contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	updated, err := h.accountService.SetAvatarURL(r.Context(), handle, uri)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record avatar")
		return
	}

	w.Header().Set("ETag", etagValue(updated))
	writeJSON(w, http.StatusOK, updated)
}

func etagValue(account types.Account) string {
	return strconv.FormatInt(account.Version, 10)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

// ifMatchVersion parses the If-Match header into a version token.
// Quotes and a weak-validator prefix are tolerated.
func ifMatchVersion(r *http.Request) (int64, bool, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, false, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 1 {
		return 0, true, errors.New("invalid version token")
	}
	return version, true, nil
}
