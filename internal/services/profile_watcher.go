package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

const (
	DefaultWatchInterval = 10 * time.Second
	DefaultWatchCooldown = 60 * time.Second
	defaultWatchBatch    = 500
)

type ProfileWatcherDeps struct {
	Changes  repos.ProfileChangeRepo
	Bus      bus.Bus
	Cooldown Cooldown
	Metrics  *observability.Metrics
	Interval time.Duration
	// CooldownTTL is the minimum gap between two re-evaluation signals for one user.
	CooldownTTL time.Duration
	// Fields defaults to every tracked profile field.
	Fields []string
}

// ProfileChangeWatcher turns new rows in the profile change log into debounced
// profile.reevaluate events.
type ProfileChangeWatcher struct {
	log      *logger.Logger
	changes  repos.ProfileChangeRepo
	cooldown Cooldown
	events   eventPublisher
	metrics  *observability.Metrics
	interval time.Duration
	ttl      time.Duration
	fields   []string

	mu     sync.Mutex
	cursor uint
}

func NewProfileChangeWatcher(log *logger.Logger, deps ProfileWatcherDeps) *ProfileChangeWatcher {
	watcherLog := log.With("service", "ProfileChangeWatcher")
	w := &ProfileChangeWatcher{
		log:      watcherLog,
		changes:  deps.Changes,
		cooldown: deps.Cooldown,
		events:   eventPublisher{bus: deps.Bus, log: watcherLog, metrics: deps.Metrics},
		metrics:  deps.Metrics,
		interval: deps.Interval,
		ttl:      deps.CooldownTTL,
		fields:   deps.Fields,
	}
	if w.cooldown == nil {
		w.cooldown = NewMemoryCooldown()
	}
	if w.interval <= 0 {
		w.interval = DefaultWatchInterval
	}
	if w.ttl <= 0 {
		w.ttl = DefaultWatchCooldown
	}
	if len(w.fields) == 0 {
		w.fields = append([]string(nil), user.TrackedFields...)
	}
	return w
}

// Start skips the existing backlog and polls until ctx is done.
func (w *ProfileChangeWatcher) Start(ctx context.Context) error {
	last, err := w.changes.MaxID(ctx, nil)
	if err != nil {
		return fmt.Errorf("profile watcher cursor: %w", err)
	}
	w.mu.Lock()
	w.cursor = last
	w.mu.Unlock()
	w.log.Info("profile watcher started", "cursor", last, "interval", w.interval.String(), "cooldown", w.ttl.String())

	go func() {
		t := time.NewTicker(w.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
					w.log.Warn("profile watcher poll failed", "error", err)
				}
			}
		}
	}()
	return nil
}

// Poll processes changes after the cursor and returns how many users were signalled.
// The cursor only advances past a batch once every user in it was handled.
func (w *ProfileChangeWatcher) Poll(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.changes.ListAfterID(ctx, nil, w.cursor, w.fields, defaultWatchBatch)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	byUser := map[uint][]*types.ProfileChange{}
	var maxID uint
	for _, c := range rows {
		byUser[c.UserProfileID] = append(byUser[c.UserProfileID], c)
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	userIDs := make([]uint, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	signalled := 0
	for _, uid := range userIDs {
		ok, err := w.cooldown.Acquire(ctx, fmt.Sprintf("reevaluate:%d", uid), w.ttl)
		if err != nil {
			return signalled, fmt.Errorf("cooldown user %d: %w", uid, err)
		}
		if !ok {
			w.log.Debug("re-evaluation suppressed by cooldown", "user_id", uid)
			continue
		}
		fields := map[string]bool{}
		ids := make([]uint, 0, len(byUser[uid]))
		for _, c := range byUser[uid] {
			fields[c.FieldName] = true
			ids = append(ids, c.ID)
		}
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		w.events.publish(ctx, realtime.EventProfileReevaluate, uid, map[string]any{
			"fields":     names,
			"change_ids": ids,
		})
		w.metrics.IncReevaluation()
		signalled++
	}
	w.cursor = maxID
	return signalled, nil
}
