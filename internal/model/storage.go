package model

import "context"

// Archive stores audit exports in object storage.
type Archive interface {
	Store(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
