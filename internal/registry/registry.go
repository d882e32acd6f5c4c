// Package registry schedules the deletion of stored files. Every file placed in
// a tracked area gets a deadline; a periodic sweep removes what is due.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

// area is the part of a storage area the registry needs.
type area interface {
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]storage.Info, error)
}

type tracked struct {
	area area
	ttl  time.Duration
}

// Registry maps (area, file name) to a deletion time.
type Registry struct {
	store    Store
	now      func() time.Time
	areas    map[string]tracked
	onExpire func(ctx context.Context, e Entry)
}

// New creates a Registry over store. A nil clock means time.Now.
func New(store Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}

	return &Registry{
		store: store,
		now:   now,
		areas: make(map[string]tracked),
	}
}

// Track registers an area. ttl is the lifetime given to untracked files found
// by Reconcile. Track must be called before the registry is used concurrently.
func (r *Registry) Track(name string, a area, ttl time.Duration) {
	r.areas[name] = tracked{area: a, ttl: ttl}
}

// OnExpire sets a hook called after each file removed by Sweep.
func (r *Registry) OnExpire(fn func(ctx context.Context, e Entry)) {
	r.onExpire = fn
}

// Schedule sets the file's deletion time to now+after, replacing any earlier
// deadline.
func (r *Registry) Schedule(ctx context.Context, areaName, name string, after time.Duration) error {
	if _, ok := r.areas[areaName]; !ok {
		return fmt.Errorf("schedule %s/%s: unknown area", areaName, name)
	}

	e := Entry{Area: areaName, Name: name, ExpiresAt: r.now().Add(after)}
	if err := r.store.Save(ctx, e); err != nil {
		return fmt.Errorf("failed to schedule %s/%s: %w", areaName, name, err)
	}

	return nil
}

// ScheduleSooner sets the file's deletion time to now+after unless it is
// already due earlier.
func (r *Registry) ScheduleSooner(ctx context.Context, areaName, name string, after time.Duration) error {
	if _, ok := r.areas[areaName]; !ok {
		return fmt.Errorf("schedule %s/%s: unknown area", areaName, name)
	}

	e := Entry{Area: areaName, Name: name, ExpiresAt: r.now().Add(after)}
	if err := r.store.SaveIfEarlier(ctx, e); err != nil {
		return fmt.Errorf("failed to schedule %s/%s: %w", areaName, name, err)
	}

	return nil
}

// Adopt tracks a file with deadline modTime+ttl unless it is tracked already.
func (r *Registry) Adopt(ctx context.Context, areaName, name string, modTime time.Time, ttl time.Duration) (bool, error) {
	e := Entry{Area: areaName, Name: name, ExpiresAt: modTime.Add(ttl)}

	ok, err := r.store.SaveIfAbsent(ctx, e)
	if err != nil {
		return false, fmt.Errorf("failed to adopt %s/%s: %w", areaName, name, err)
	}

	return ok, nil
}

// Sweep deletes every due file and returns how many entries were settled.
// A file that is already gone counts as deleted. Other deletion failures are
// logged and the entry stays for the next sweep.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	due, err := r.store.Due(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due entries: %w", err)
	}

	settled := 0
	for _, e := range due {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}

		t, ok := r.areas[e.Area]
		if !ok {
			zlog.Logger.Warn().Str("area", e.Area).Str("file", e.Name).Msg("dropping entry for unknown area")
			if err := r.store.Delete(ctx, e.Area, e.Name); err != nil {
				zlog.Logger.Err(err).Str("file", e.Name).Msg("failed to drop entry")
			}
			continue
		}

		err := t.area.Delete(ctx, e.Name)
		switch {
		case err == nil:
			zlog.Logger.Info().Str("area", e.Area).Str("file", e.Name).Msg("expired file deleted")
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidName):
		default:
			zlog.Logger.Err(err).Str("area", e.Area).Str("file", e.Name).Msg("failed to delete expired file")
			continue
		}

		if err := r.store.Delete(ctx, e.Area, e.Name); err != nil {
			zlog.Logger.Err(err).Str("area", e.Area).Str("file", e.Name).Msg("failed to drop entry")
			continue
		}
		settled++

		if r.onExpire != nil {
			r.onExpire(ctx, e)
		}
	}

	return settled, nil
}

// Reconcile adopts every file in the tracked areas that has no entry yet, so
// leftovers from an earlier run are collected too.
func (r *Registry) Reconcile(ctx context.Context) (int, error) {
	adopted := 0
	for name, t := range r.areas {
		files, err := t.area.List(ctx)
		if err != nil {
			return adopted, fmt.Errorf("failed to list area %s: %w", name, err)
		}

		for _, f := range files {
			ok, err := r.Adopt(ctx, name, f.Name, f.ModTime, t.ttl)
			if err != nil {
				return adopted, err
			}
			if ok {
				adopted++
			}
		}
	}

	return adopted, nil
}

// Run sweeps every interval until ctx is canceled.
func (r *Registry) Run(ctx context.Context, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().Dur("interval", interval).Msg("starting cleanup sweeper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Logger.Err(err).Msg("cleanup sweep failed")
			}
		}
	}
}
