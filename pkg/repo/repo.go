// Package repo defines the generic Repository interface and list options.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entity has the requested id.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic keyed store. Merge creates or updates.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Merge(ctx context.Context, entity T) error
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List.
type ListOpts struct {
	Offset int
	Limit  int
}
