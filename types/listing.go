package types

// Listing is a catalog item owned by an account. The catalog store is
// the system of record; only the fields the deletion workflow needs are
// represented here.
type Listing struct {
	ItemID   int64  `json:"item_id"`
	SellerID int64  `json:"seller_id"`
	Status   string `json:"status"`
}

// Listing statuses the deletion workflow cares about.
const (
	ListingAvailable = "available"
	ListingReserved  = "reserved"
	ListingSold      = "sold"
)

// Blocking reports whether the listing's status prevents deletion of
// the owning account.
func (l Listing) Blocking() bool {
	return l.Status == ListingReserved || l.Status == ListingSold
}
