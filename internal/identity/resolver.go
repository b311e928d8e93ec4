// Package identity resolves inbound channel/external-id pairs to a stored
// user, backing the cross-channel identity linking spec.md §3/§4.5
// describes: one person reachable from several channels under one user
// record, without every gateway message re-deriving that mapping from
// scratch.
package identity

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hattiebot/hattiebot/internal/store"
)

// cacheSize bounds the in-process identity cache (spec.md §4.5: LRU of 256).
const cacheSize = 256

// Resolver maps (channel, external_id) to a *store.User, minting a new user
// on first contact and caching the mapping so repeat messages on a busy
// channel don't hit the identity table every turn.
type Resolver struct {
	db    *store.DB
	cache *lru.Cache[string, string] // "channel\x00external_id" -> user_id
}

func NewResolver(db *store.DB) (*Resolver, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating identity cache: %w", err)
	}
	return &Resolver{db: db, cache: cache}, nil
}

func cacheKey(channel, externalID string) string {
	return channel + "\x00" + externalID
}

// Resolve returns the user linked to (channel, external_id), creating one
// if this is the first time that pair has been seen. newlyCreated reports
// which happened.
func (r *Resolver) Resolve(ctx context.Context, channel, externalID string) (user *store.User, newlyCreated bool, err error) {
	key := cacheKey(channel, externalID)

	if userID, ok := r.cache.Get(key); ok {
		if u, err := r.db.GetUser(ctx, userID); err == nil {
			return u, false, nil
		}
		r.cache.Remove(key)
	}

	userID, err := r.db.GetUserIdentity(ctx, channel, externalID)
	if err == nil {
		u, err := r.db.GetUser(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		r.cache.Add(key, u.ID)
		return u, false, nil
	}
	if err != store.ErrIdentityNotFound {
		return nil, false, err
	}

	// First contact on this channel: mint a user and link the identity.
	u, err := r.db.GetOrCreateUser(ctx, channel+":"+externalID, "", channel)
	if err != nil {
		return nil, false, err
	}
	if err := r.db.LinkUserIdentity(ctx, channel, externalID, u.ID); err != nil {
		return nil, false, err
	}
	r.cache.Add(key, u.ID)
	return u, true, nil
}

// SelfLink attaches an additional (channel, external_id) pair to an
// already-known user, so a person who reaches out on a second channel
// merges into their existing identity instead of getting a second user
// record (spec.md §4.5 "self_link").
func (r *Resolver) SelfLink(ctx context.Context, sourceChannel, sourceExternalID, targetUserID string) error {
	if err := r.db.LinkUserIdentity(ctx, sourceChannel, sourceExternalID, targetUserID); err != nil {
		return err
	}
	r.cache.Add(cacheKey(sourceChannel, sourceExternalID), targetUserID)
	return nil
}

// SessionKey builds the "user:{user_id}:{channel}:{context_suffix}" format
// (spec.md §3).
func SessionKey(userID, channel, contextSuffix string) string {
	return fmt.Sprintf("user:%s:%s:%s", userID, channel, contextSuffix)
}

// ParseSessionKey splits a session key back into its parts. ok is false if
// the key doesn't match the "user:{id}:{channel}:{suffix}" shape.
func ParseSessionKey(key string) (userID, channel, contextSuffix string, ok bool) {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 || parts[0] != "user" {
		return "", "", "", false
	}
	return parts[1], parts[2], parts[3], true
}
