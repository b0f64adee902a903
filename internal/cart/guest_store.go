package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// GuestBackend is the Redis surface used for guest carts.
type GuestBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(session string) string
}

type guestPayload struct {
	Lines Lines `json:"lines"`
}

// guestStore keeps a guest cart as one JSON document per session. Every write
// refreshes the TTL.
type guestStore struct {
	backend GuestBackend
	key     string
	ttl     time.Duration
}

func newGuestStore(backend GuestBackend, session string, ttl time.Duration) *guestStore {
	return &guestStore{backend: backend, key: backend.GuestCartKey(session), ttl: ttl}
}

func (s *guestStore) Load(ctx context.Context) (Lines, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, redis.Nil) {
		return Lines{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read guest cart")
	}
	return decodeGuest(raw)
}

// Mutate is a read-modify-write without a lock. Concurrent writes from the
// same browser session are last-writer-wins.
func (s *guestStore) Mutate(ctx context.Context, fn mutation) (Lines, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *guestStore) Clear(ctx context.Context) error {
	if err := s.backend.Del(ctx, s.key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest cart")
	}
	return nil
}

// Take atomically reads and deletes the guest cart so only one merge can
// observe its contents.
func (s *guestStore) Take(ctx context.Context) (Lines, error) {
	raw, err := s.backend.GetDel(ctx, s.key)
	if errors.Is(err, redis.Nil) {
		return Lines{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim guest cart")
	}
	return decodeGuest(raw)
}

// Restore puts back lines claimed by Take after a failed merge.
func (s *guestStore) Restore(ctx context.Context, lines Lines) error {
	return s.write(ctx, lines)
}

func (s *guestStore) write(ctx context.Context, lines Lines) error {
	if len(lines) == 0 {
		return s.Clear(ctx)
	}
	payload, err := json.Marshal(guestPayload{Lines: lines})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart")
	}
	if err := s.backend.Set(ctx, s.key, string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write guest cart")
	}
	return nil
}

func decodeGuest(raw string) (Lines, error) {
	var payload guestPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode guest cart")
	}
	out := make(Lines, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		if line.Quantity < 1 {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
