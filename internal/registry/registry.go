// Package registry keeps the room presence registry: which memberships can
// currently use a room, resolved through role grants. It is a derived,
// rebuildable projection of the room store — never authoritative. Entries are
// populated from the store on first access and evicted when the underlying
// room or its grants change; a stale read here can always be corrected by
// evicting and reloading.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Loader pulls the authoritative member list for a room out of the room
// store. The registry calls it on a cache miss.
type Loader func(ctx context.Context, roomID uint64) ([]uint64, error)

// entryTTL bounds how long a populated entry may serve reads before Redis
// expires it and the next access reloads from the store.
const entryTTL = 10 * time.Minute

// RoomRegistry caches room membership sets in Redis, falling back to a
// process-local map when no Redis client is available.
type RoomRegistry struct {
	rdb  *redis.Client
	load Loader

	mu    sync.Mutex
	local map[uint64][]uint64
}

// New returns a registry backed by the given Redis client. A nil client is
// accepted and degrades to the in-process fallback.
func New(rdb *redis.Client, load Loader) *RoomRegistry {
	return &RoomRegistry{
		rdb:   rdb,
		load:  load,
		local: make(map[uint64][]uint64),
	}
}

func key(roomID uint64) string { return fmt.Sprintf("room:%d:members", roomID) }

// Members returns the membership ids with access to the room, serving from
// the cache when populated and loading from the store on a miss.
func (r *RoomRegistry) Members(ctx context.Context, roomID uint64) ([]uint64, error) {
	if r.rdb == nil {
		return r.localMembers(ctx, roomID)
	}

	raw, err := r.rdb.SMembers(ctx, key(roomID)).Result()
	if err == nil && len(raw) > 0 {
		out := make([]uint64, 0, len(raw))
		for _, s := range raw {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				continue
			}
			out = append(out, n)
		}
		return out, nil
	}

	members, err := r.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		vals := make([]interface{}, len(members))
		for i, m := range members {
			vals[i] = strconv.FormatUint(m, 10)
		}
		pipe := r.rdb.Pipeline()
		pipe.SAdd(ctx, key(roomID), vals...)
		pipe.Expire(ctx, key(roomID), entryTTL)
		// A failed write only costs the next caller a reload.
		_, _ = pipe.Exec(ctx)
	}
	return members, nil
}

// Evict drops the cached entry for a room. Called when the room is deleted
// or its grants change; an empty room simply stops being cached.
func (r *RoomRegistry) Evict(ctx context.Context, roomID uint64) {
	if r.rdb == nil {
		r.mu.Lock()
		delete(r.local, roomID)
		r.mu.Unlock()
		return
	}
	_ = r.rdb.Del(ctx, key(roomID)).Err()
}

func (r *RoomRegistry) localMembers(ctx context.Context, roomID uint64) ([]uint64, error) {
	r.mu.Lock()
	cached, ok := r.local[roomID]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}
	members, err := r.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		r.mu.Lock()
		r.local[roomID] = members
		r.mu.Unlock()
	}
	return members, nil
}
