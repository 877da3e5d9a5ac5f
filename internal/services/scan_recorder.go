package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/pkg/logger"
	"github.com/nexcard/nexcard/pkg/metrics"
)

const defaultScanQueueSize = 256

// ScanInput carries the telemetry captured alongside a successful resolution.
// Every field except Code is client-supplied and optional.
type ScanInput struct {
	Code       string
	DeviceInfo string
	Location   string
	Referrer   string
	SessionID  string
}

// ScanRecorderOption customises the ScanRecorder.
type ScanRecorderOption func(*ScanRecorder)

// WithScanQueueSize overrides the buffered queue capacity.
func WithScanQueueSize(size int) ScanRecorderOption {
	return func(r *ScanRecorder) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

// WithScanClock injects a custom clock primarily for testing.
func WithScanClock(clock func() time.Time) ScanRecorderOption {
	return func(r *ScanRecorder) {
		if clock != nil {
			r.now = clock
		}
	}
}

// ScanRecorder persists scan telemetry off the resolution path. Events are queued on a
// buffered channel and written by a single worker; a full queue or a storage failure
// drops the event with a log line and never reaches the scanner.
type ScanRecorder struct {
	db        *gorm.DB
	log       *zap.Logger
	queueSize int
	now       func() time.Time

	queue chan ScanInput
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	closed bool
}

// NewScanRecorder constructs the recorder and starts its worker goroutine.
func NewScanRecorder(db *gorm.DB, opts ...ScanRecorderOption) (*ScanRecorder, error) {
	if db == nil {
		return nil, errors.New("scan recorder: db is required")
	}

	recorder := &ScanRecorder{
		db:        db,
		log:       logger.WithModule("scans"),
		queueSize: defaultScanQueueSize,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(recorder)
	}

	recorder.queue = make(chan ScanInput, recorder.queueSize)
	recorder.done = make(chan struct{})
	go recorder.run()

	return recorder, nil
}

// Record enqueues a scan event. It never blocks and never returns an error: telemetry
// must not change the outcome or latency class of the resolve that triggered it.
func (r *ScanRecorder) Record(input ScanInput) {
	input.Code = strings.TrimSpace(input.Code)
	if input.Code == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		metrics.ScansRecorded.WithLabelValues("dropped").Inc()
		r.log.Warn("scan recorder closed, dropping event", zap.String("code", input.Code))
		return
	}

	select {
	case r.queue <- input:
	default:
		metrics.ScansRecorded.WithLabelValues("dropped").Inc()
		r.log.Warn("scan queue full, dropping event", zap.String("code", input.Code))
	}
}

// Close stops accepting events and drains the queue before returning. Events
// recorded after Close are dropped, not panicked on.
func (r *ScanRecorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.queue)
		<-r.done
	})
}

func (r *ScanRecorder) run() {
	defer close(r.done)

	for input := range r.queue {
		if err := r.persist(input); err != nil {
			metrics.ScansRecorded.WithLabelValues("failed").Inc()
			r.log.Warn("failed to record scan",
				zap.String("code", input.Code),
				zap.Error(err),
			)
			continue
		}
		metrics.ScansRecorded.WithLabelValues("recorded").Inc()
	}
}

func (r *ScanRecorder) persist(input ScanInput) error {
	now := r.now().UTC()

	event := models.ScanEvent{
		Code:       input.Code,
		ScannedAt:  now,
		Location:   input.Location,
		DeviceInfo: input.DeviceInfo,
		Referrer:   input.Referrer,
		SessionID:  input.SessionID,
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("scan recorder: create event: %w", err)
		}

		updates := map[string]any{
			"scan_count":      gorm.Expr("scan_count + 1"),
			"last_scanned_at": now,
		}
		if input.Location != "" {
			updates["last_scan_location"] = input.Location
		}

		if err := tx.Model(&models.ConnectionCode{}).
			Where("code = ?", input.Code).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("scan recorder: update rollups: %w", err)
		}
		return nil
	})
}

// ScanStats summarises scan activity for an owner's dashboard.
type ScanStats struct {
	TotalScans  int64              `json:"total_scans"`
	RecentScans []models.ScanEvent `json:"recent_scans"`
	LastScanAt  *time.Time         `json:"last_scan_date,omitempty"`
}

// Stats aggregates scan telemetry across all codes the owner has ever issued.
func (r *ScanRecorder) Stats(ctx context.Context, ownerID string, recentLimit int) (*ScanStats, error) {
	ctx = ensureContext(ctx)

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("scan recorder: owner id is required")
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}

	var codes []string
	if err := r.db.WithContext(ctx).Model(&models.ConnectionCode{}).
		Where("owner_user_id = ?", ownerID).
		Pluck("code", &codes).Error; err != nil {
		return nil, fmt.Errorf("scan recorder: load codes: %w", err)
	}

	stats := &ScanStats{RecentScans: []models.ScanEvent{}}
	if len(codes) == 0 {
		return stats, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Where("code IN ?", codes).
		Count(&stats.TotalScans).Error; err != nil {
		return nil, fmt.Errorf("scan recorder: count scans: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Where("code IN ?", codes).
		Order("scanned_at DESC").
		Limit(recentLimit).
		Find(&stats.RecentScans).Error; err != nil {
		return nil, fmt.Errorf("scan recorder: load recent scans: %w", err)
	}

	if len(stats.RecentScans) > 0 {
		last := stats.RecentScans[0].ScannedAt
		stats.LastScanAt = &last
	}

	return stats, nil
}
