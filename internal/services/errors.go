package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/todoapi/apiserver/internal/store"
)

// ErrIDMismatch is returned by Replace when the path id and the body id differ.
var ErrIDMismatch = errors.New("id does not match request body")

// ErrUserNotFound is returned when a todo item references a missing user.
// It matches store.ErrNotFound.
var ErrUserNotFound = fmt.Errorf("user does not exist: %w", store.ErrNotFound)

// resolveConflict turns a failed versioned write into ErrNotFound when the
// record has been deleted in the meantime. Other errors pass through.
func resolveConflict(ctx context.Context, err error, id int64, exists func(context.Context, int64) (bool, error)) error {
	if !errors.Is(err, store.ErrConflict) {
		return err
	}
	found, existsErr := exists(ctx, id)
	if existsErr != nil {
		return existsErr
	}
	if !found {
		return store.ErrNotFound
	}
	return err
}
