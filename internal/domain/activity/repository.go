package activity

import "context"

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}
