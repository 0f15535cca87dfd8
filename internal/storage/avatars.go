package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectBackend defines the object operations avatar storage needs.
// Put returns the public URI of the stored object.
type ObjectBackend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// AvatarStore keys avatar objects by account id on top of a backend.
type AvatarStore struct {
	backend ObjectBackend
}

func NewAvatarStore(backend ObjectBackend) *AvatarStore {
	return &AvatarStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put stores an account's avatar and returns its public URI. A second
// upload for the same account overwrites the first.
func (s *AvatarStore) Put(ctx context.Context, userID int64, r io.Reader, size int64, contentType string) (string, error) {
	return s.backend.Put(ctx, avatarKey(userID), r, size, contentType)
}

// Delete removes an account's stored avatar. Deleting a missing object
// is a no-op.
func (s *AvatarStore) Delete(ctx context.Context, userID int64) error {
	return s.backend.Delete(ctx, avatarKey(userID))
}

func avatarKey(userID int64) string {
	return fmt.Sprintf("avatars/%d", userID)
}
