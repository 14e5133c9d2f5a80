package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/realtime"
	"github.com/iliyamo/tasktracker/internal/repository"
)

// storeErr translates repository sentinels into service sentinels and
// wraps anything else in ErrPersistence.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrDuplicateEmail
	case errors.Is(err, repository.ErrDuplicateName):
		return ErrDuplicateName
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// broadcastUsers re-reads the user collection and pushes it.  It runs after
// the mutation committed, so failures are logged and never undo the write,
// and a cancelled request does not stop it.
func broadcastUsers(ctx context.Context, users UserStore, n Notifier, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	list, err := users.List(ctx)
	if err != nil {
		log.Error("broadcast.users.query", "err", err)
		return
	}
	if err := n.Notify(ctx, realtime.EventUserUpdate, model.Views(list)); err != nil {
		log.Error("broadcast.users.notify", "err", err)
	}
}

func notFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
