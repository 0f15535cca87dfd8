package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lionswap/accounts/types"
)

const catalogService = "catalog store"

const (
	catalogReadTimeout   = 5 * time.Second
	catalogDeleteTimeout = 15 * time.Second
)

// CatalogClient is a thin typed client for the catalog store (ms2).
// Bulk deletes get a longer timeout than reads.
type CatalogClient struct {
	baseURL      string
	readClient   *http.Client
	deleteClient *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		readClient:   &http.Client{Timeout: catalogReadTimeout},
		deleteClient: &http.Client{Timeout: catalogDeleteTimeout},
	}
}

// ListItemsBySeller returns all listings owned by the given account id.
// The catalog store answers with either a bare JSON array or an
// {items: [...]} envelope; both are normalized here and never leak
// past this boundary.
func (c *CatalogClient) ListItemsBySeller(ctx context.Context, sellerID int64) ([]types.Listing, error) {
	endpoint := fmt.Sprintf("%s/items?seller_id=%s", c.baseURL, strconv.FormatInt(sellerID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.readClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Service: catalogService, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Service: catalogService, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &UnavailableError{Service: catalogService, Err: err}
	}

	return normalizeListings(body, resp.StatusCode)
}

// DeleteItem deletes a single listing. The remote status code is
// returned as data.
func (c *CatalogClient) DeleteItem(ctx context.Context, itemID int64) (DeleteResult, error) {
	endpoint := fmt.Sprintf("%s/items/%s", c.baseURL, strconv.FormatInt(itemID, 10))
	return c.doDelete(ctx, endpoint)
}

// DeleteItemsBySeller deletes every listing owned by the given account
// id. Idempotent on the remote side: deleting an owner with nothing
// left is a no-op success.
func (c *CatalogClient) DeleteItemsBySeller(ctx context.Context, sellerID int64) (DeleteResult, error) {
	endpoint := fmt.Sprintf("%s/items?seller_id=%s", c.baseURL, strconv.FormatInt(sellerID, 10))
	return c.doDelete(ctx, endpoint)
}

func (c *CatalogClient) doDelete(ctx context.Context, endpoint string) (DeleteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return DeleteResult{}, err
	}

	resp, err := c.deleteClient.Do(req)
	if err != nil {
		return DeleteResult{}, &UnavailableError{Service: catalogService, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	result := DeleteResult{StatusCode: resp.StatusCode}
	if len(body) > 0 && json.Valid(body) {
		result.Body = json.RawMessage(body)
	}
	return result, nil
}

// listingPayload tolerates both item_id and id key spellings.
type listingPayload struct {
	ItemID   *int64 `json:"item_id"`
	ID       *int64 `json:"id"`
	SellerID int64  `json:"seller_id"`
	Status   string `json:"status"`
}

func normalizeListings(body []byte, statusCode int) ([]types.Listing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var payloads []listingPayload
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return nil, &StatusError{Service: catalogService, StatusCode: statusCode}
		}
	case '{':
		var envelope struct {
			Items []listingPayload `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &StatusError{Service: catalogService, StatusCode: statusCode}
		}
		payloads = envelope.Items
	default:
		return nil, &StatusError{Service: catalogService, StatusCode: statusCode}
	}

	listings := make([]types.Listing, 0, len(payloads))
	for _, p := range payloads {
		listing := types.Listing{SellerID: p.SellerID, Status: p.Status}
		switch {
		case p.ItemID != nil:
			listing.ItemID = *p.ItemID
		case p.ID != nil:
			listing.ItemID = *p.ID
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
