package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrEmptyFile           = errors.New("no file provided")
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
)

const keyCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

var allowedAvatarTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// Avatars validates and stores profile pictures under avatars/<account>/.
type Avatars struct {
	store    Store
	maxBytes int64
}

func NewAvatars(store Store, maxBytes int64) *Avatars {
	return &Avatars{store: store, maxBytes: maxBytes}
}

func (a *Avatars) MaxBytes() int64 {
	return a.maxBytes
}

// Validate sniffs the content instead of trusting the client's content type.
func (a *Avatars) Validate(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return nil, ErrFileTooLarge
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), allowedAvatarTypes...) {
		return nil, ErrFileTypeUnsupported
	}
	return mime, nil
}

// Upload validates data and stores it under a fresh key.
func (a *Avatars) Upload(ctx context.Context, accountID string, data []byte) (string, error) {
	mime, err := a.Validate(data)
	if err != nil {
		return "", err
	}

	id, err := gonanoid.Generate(keyCharset, 16)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%s/%s%s", accountID, id, mime.Extension())
	if err := a.store.Put(ctx, key, data, mime.String()); err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return key, nil
}

// Remove deletes key. Missing objects are not an error.
func (a *Avatars) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := a.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

func (a *Avatars) URL(key string) string {
	return a.store.URL(key)
}
