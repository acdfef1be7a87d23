// Package storage provides directory listing over object storage.
package storage

import "context"

// Lister enumerates bare filenames directly under a storage prefix.
//
// When allowMissing is true, an unreadable or absent prefix is reported as an
// empty listing rather than an error. When false, listing failures are fatal
// and returned as apperrors.ErrListing.
type Lister interface {
	List(ctx context.Context, prefix string, allowMissing bool) ([]string, error)
}
