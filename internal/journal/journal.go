/*
Journal persists one row per (site, instrument, tick) recording what the
pipeline decided: the consensus estimation, the advice, and the instruction
and reconcile counts.

Writes go through a bounded queue drained by one background goroutine so a
slow database never stalls a trading pass; on overflow the record is
dropped and counted. The journal records the engine's own decisions only;
order and fill history stays with the venue.
*/
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/pkg/conn"
)

const defaultQueueSize = 1024

// Record is one journaled tick decision.
type Record struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Site       string    `gorm:"index:idx_journal_target"`
	Instrument string    `gorm:"index:idx_journal_target"`
	TickAt     time.Time `gorm:"index"`

	EstimationPrice      string
	EstimationConfidence string
	BuyLimitPrice        string
	BuyLimitSize         string
	SellLimitPrice       string
	SellLimitSize        string

	Creates         int
	Cancels         int
	ReconcileOK     int
	ReconcileFailed int

	CreatedAt time.Time
}

// TableName pins the table name regardless of gorm's pluralization.
func (Record) TableName() string { return "tick_journal" }

// Dec formats a nullable decimal for storage; unknown values store empty.
func Dec(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// Config controls the journal writer.
type Config struct {
	DSN       string
	QueueSize int
}

// Writer is the asynchronous journal writer. A nil *Writer is a valid
// no-op journal.
type Writer struct {
	client  *conn.Client
	queue   chan Record
	done    chan struct{}
	once    sync.Once
	metrics *obs.Metrics
}

// NewWriter opens the database, migrates the journal table, and starts the
// drain goroutine.
func NewWriter(ctx context.Context, cfg Config, metrics *obs.Metrics) (*Writer, error) {
	if cfg.DSN == "" {
		return nil, errors.New("journal dsn is empty")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	client, err := conn.New(conn.Option{DSN: cfg.DSN})
	if err != nil {
		return nil, errors.Wrap(err, "open journal database")
	}
	if err := client.Migrate(&Record{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate journal table")
	}

	w := &Writer{
		client:  client,
		queue:   make(chan Record, queueSize),
		done:    make(chan struct{}),
		metrics: metrics,
	}
	go w.drain(ctx)
	return w, nil
}

// Record enqueues one record, dropping it when the queue is full.
func (w *Writer) Record(r Record) {
	if w == nil {
		return
	}
	select {
	case w.queue <- r:
	default:
		w.metrics.IncJournalDrop()
		logs.Warnf("journal: queue full, dropped record for %s.%s", r.Site, r.Instrument)
	}
}

// Close stops the drain goroutine and closes the database after the queue
// empties.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	w.once.Do(func() { close(w.done) })
}

func (w *Writer) drain(ctx context.Context) {
	defer func() {
		if err := w.client.Close(); err != nil {
			logs.Warnf("journal: close database: %v", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			// Flush whatever is already queued, then stop.
			for {
				select {
				case r := <-w.queue:
					w.write(r)
				default:
					return
				}
			}
		case r := <-w.queue:
			w.write(r)
		}
	}
}

func (w *Writer) write(r Record) {
	if err := w.client.DB().Create(&r).Error; err != nil {
		logs.Errorf("journal: insert failed: %v", err)
	}
}
