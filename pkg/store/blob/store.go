// Package blob abstracts the object store uploads and artifacts live in.
// The pipeline only ever needs put/get/URL; bucket mechanics stay behind
// this boundary.
package blob

import "context"

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL resolves a key to something a download endpoint can hand out.
	URL(ctx context.Context, key string) (string, error)
}
