package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const identityService = "identity store"

const identityTimeout = 5 * time.Second

// RemoteUser is the identity store's representation of a user. Only the
// fields the deletion workflow needs are decoded.
type RemoteUser struct {
	UserID int64  `json:"user_id"`
	Handle string `json:"uni"`
	Email  string `json:"email"`
}

// UserLookup is the typed result of a user fetch. Found is false when
// the store confirmed the user does not exist.
type UserLookup struct {
	Found bool
	User  RemoteUser
	ETag  string
}

// DeleteResult carries the raw outcome of a remote delete. The status
// code is preserved even when non-2xx so the orchestrator can reconcile
// per-leg results.
type DeleteResult struct {
	StatusCode int
	Body       json.RawMessage
}

// IdentityClient is a thin typed client for the identity store (ms1).
type IdentityClient struct {
	baseURL string
	client  *http.Client
}

func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: identityTimeout},
	}
}

// GetUser fetches a user by handle. A 404 is a confirmed absence, not
// an error.
func (c *IdentityClient) GetUser(ctx context.Context, handle string) (UserLookup, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return UserLookup{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return UserLookup{}, &UnavailableError{Service: identityService, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return UserLookup{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UserLookup{}, &StatusError{Service: identityService, StatusCode: resp.StatusCode}
	}

	var user RemoteUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return UserLookup{}, &StatusError{Service: identityService, StatusCode: resp.StatusCode}
	}

	return UserLookup{
		Found: true,
		User:  user,
		ETag:  resp.Header.Get("ETag"),
	}, nil
}

// DeleteUser deletes a user by handle. The remote status code is
// returned as data; only transport failures surface as errors.
func (c *IdentityClient) DeleteUser(ctx context.Context, handle string) (DeleteResult, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return DeleteResult{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return DeleteResult{}, &UnavailableError{Service: identityService, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	result := DeleteResult{StatusCode: resp.StatusCode}
	if len(body) > 0 && json.Valid(body) {
		result.Body = json.RawMessage(body)
	}
	return result, nil
}
