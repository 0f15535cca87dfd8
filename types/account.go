package types

import "time"

// Account represents an identity record in the system.
// It carries profile data, the external identity-provider link,
// and an optimistic-concurrency version token.
type Account struct {
	// ID is the unique numeric identifier of the account. It doubles as
	// the owner identifier referenced by catalog listings.
	ID int64 `json:"user_id" db:"user_id"`

	// Handle is the short unique external username (e.g. the email
	// local part). Immutable once assigned, except for the numeric
	// suffix applied at creation to resolve collisions.
	Handle string `json:"uni" db:"uni"`

	// Name is the account's display name.
	Name string `json:"student_name" db:"student_name"`

	// Department is an optional organisational affiliation.
	Department *string `json:"dept_name,omitempty" db:"dept_name"`

	// Email is the account's email address. Unique by business rule.
	Email string `json:"email" db:"email"`

	// Phone is an optional contact number.
	Phone *string `json:"phone,omitempty" db:"phone"`

	// AvatarURL points at the account's avatar image, when set.
	AvatarURL *string `json:"avatar_url,omitempty" db:"avatar_url"`

	// CredibilityScore is a bounded decimal with two fractional digits.
	// Never negative; defaults to 0.00.
	CredibilityScore float64 `json:"credibility_score" db:"credibility_score"`

	// LastSeenAt is bumped on every successful sign-in.
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`

	// GoogleID is the identity provider's subject identifier.
	// Unique when present.
	GoogleID *string `json:"google_id,omitempty" db:"google_id"`

	// Version increases on every mutating update and backs the
	// ETag/If-Match conditional request cycle.
	Version int64 `json:"version" db:"version"`
}

// AccountUpdate holds the mutable profile fields for a partial update.
// Nil fields are left untouched.
type AccountUpdate struct {
	Name             *string  `json:"student_name,omitempty"`
	Department       *string  `json:"dept_name,omitempty"`
	Email            *string  `json:"email,omitempty"`
	Phone            *string  `json:"phone,omitempty"`
	AvatarURL        *string  `json:"avatar_url,omitempty"`
	CredibilityScore *float64 `json:"credibility_score,omitempty"`
}
