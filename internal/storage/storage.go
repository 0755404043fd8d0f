package storage

import "context"

// Backend stores an object and returns the URL clients fetch it from.
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
