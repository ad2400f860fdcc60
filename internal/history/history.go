// Package history keeps a log of fired events: a bounded in-memory tail for
// the API and, when a database is configured, batched inserts into
// playback_events.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/morea-atlas/campaign-player/internal/model"
	"github.com/morea-atlas/campaign-player/internal/queue"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

const (
	defaultRecent   = 200
	defaultInterval = 2 * time.Second
	maxPending      = 10000
)

// Entry is one fired event as remembered by the recorder.
type Entry struct {
	SessionID string    `json:"sessionId"`
	FiredAt   time.Time `json:"firedAt"`
	core.EventPayload
}

// Dependencies holds the recorder's collaborators. DB may be nil.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	Now    func() time.Time
}

// Recorder collects fired events. Record is safe to call from the playback
// loop; database writes happen on a background goroutine.
type Recorder struct {
	deps      Dependencies
	sessionID string
	recent    *queue.Queue[Entry]
	pending   *queue.Queue[model.PlaybackEvent]

	mu      sync.Mutex
	stop    context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewRecorder creates a recorder with a fresh session id.
func NewRecorder(deps Dependencies) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Recorder{
		deps:      deps,
		sessionID: uuid.NewString(),
		recent:    queue.NewBounded[Entry](defaultRecent),
		pending:   queue.NewBounded[model.PlaybackEvent](maxPending),
	}
}

// SessionID identifies this run in the database.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record remembers e. It never blocks on the database.
func (r *Recorder) Record(e core.EventPayload) {
	entry := Entry{SessionID: r.sessionID, FiredAt: r.deps.Now(), EventPayload: e}
	r.recent.Push(entry)
	if r.deps.DB != nil {
		r.pending.Push(toModel(entry))
	}
}

// Recent returns the last fired events, oldest first, optionally limited to
// one campaign.
func (r *Recorder) Recent(campaignID string) []Entry {
	items := r.recent.Items()
	if campaignID == "" {
		return items
	}
	out := make([]Entry, 0, len(items))
	for _, e := range items {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out
}

// Pending returns the number of events waiting for the database.
func (r *Recorder) Pending() int {
	return r.pending.Len()
}

// Flush writes pending events in one transaction. On failure they are put
// back for the next attempt.
func (r *Recorder) Flush(ctx context.Context) error {
	if r.deps.DB == nil || r.pending.Empty() {
		return nil
	}
	items := r.pending.Drain()
	tx := r.deps.DB.WithContext(ctx).Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		r.pending.Requeue(items...)
		return fmt.Errorf("failed to write %d playback events: %w", len(items), err)
	}
	if err := tx.Commit().Error; err != nil {
		r.pending.Requeue(items...)
		return fmt.Errorf("failed to commit playback events: %w", err)
	}
	return nil
}

// Start flushes every interval until Stop. Without a database it is a no-op.
func (r *Recorder) Start(ctx context.Context, interval time.Duration) {
	if r.deps.DB == nil {
		return
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return
	}
	ctx, r.stop = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Flush(ctx); err != nil {
					r.setErr(err)
					r.deps.Logger.Error("History flush failed", "error", err, "pending", r.pending.Len())
				}
			}
		}
	}(r.done)
}

// Stop ends the flush goroutine and writes whatever is left.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
	return r.Flush(context.Background())
}

// LastError returns the most recent background flush error.
func (r *Recorder) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Recorder) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// Load reads stored events for a campaign, newest first.
func Load(ctx context.Context, db *gorm.DB, campaignID string, limit int) ([]Entry, error) {
	var rows []model.PlaybackEvent
	q := db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("fired_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load playback events: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = fromModel(row)
	}
	return out, nil
}

func toModel(e Entry) model.PlaybackEvent {
	row := model.PlaybackEvent{
		SessionID:  e.SessionID,
		FiredAt:    e.FiredAt,
		CampaignID: e.CampaignID,
		ClipIndex:  e.ClipIndex,
		EventIndex: e.EventIndex,
		UnitID:     e.UnitID,
		At:         e.At,
		Text:       e.Text,
	}
	if e.Coords != nil {
		lon, lat := e.Coords.X, e.Coords.Y
		row.Lon, row.Lat = &lon, &lat
	}
	return row
}

func fromModel(row model.PlaybackEvent) Entry {
	e := Entry{
		SessionID: row.SessionID,
		FiredAt:   row.FiredAt,
		EventPayload: core.EventPayload{
			CampaignID: row.CampaignID,
			ClipIndex:  row.ClipIndex,
			EventIndex: row.EventIndex,
			UnitID:     row.UnitID,
			At:         row.At,
			Text:       row.Text,
		},
	}
	if row.Lon != nil && row.Lat != nil {
		e.Coords = &core.Position2D{X: *row.Lon, Y: *row.Lat}
	}
	return e
}
