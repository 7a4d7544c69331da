package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher hands audit events to a fixed set of workers, sharded by user so
// one user's events are stored in the order they happened.
type Dispatcher struct {
	workers  []chan domain.AuthEvent
	repo     ports.AuditRepository
	throttle ports.DeniedThrottle
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used. throttle may be nil.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, throttle ports.DeniedThrottle, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan domain.AuthEvent, numWorkers),
		repo:     repo,
		throttle: throttle,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their channel and stop
// when ctx is cancelled; Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Record enqueues ev. It never blocks: when the worker's channel is full the
// event is dropped and logged.
func (d *Dispatcher) Record(ev domain.AuthEvent) {
	idx := d.shardIndex(ev)
	select {
	case d.workers[idx] <- ev:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "dropped").Inc()
		d.log.Warn().Str("type", string(ev.Type)).Int64("user_id", ev.UserID).Msg("audit queue full, event dropped")
	}
}

// shardIndex maps an event's user deterministically to a worker index.
func (d *Dispatcher) shardIndex(ev domain.AuthEvent) int {
	key := ev.Email
	if ev.UserID != 0 {
		key = strconv.FormatInt(ev.UserID, 10)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case ev := <-ch:
			// ctx may already be cancelled when select picks this case.
			if ctx.Err() != nil {
				d.store(context.Background(), id, ev)
				d.drain(id, ch)
				return
			}
			d.store(ctx, id, ev)
		}
	}
}

// drain stores what is still queued once ctx is cancelled.
func (d *Dispatcher) drain(id int, ch <-chan domain.AuthEvent) {
	for {
		select {
		case ev := <-ch:
			d.store(context.Background(), id, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) store(ctx context.Context, id int, ev domain.AuthEvent) {
	metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(d.workers[id])))

	if ev.Type == domain.EventAccessDenied && d.throttle != nil {
		ok, err := d.throttle.Allow(ctx, fmt.Sprintf("%d:%s", ev.UserID, ev.Path))
		if err != nil {
			d.log.Warn().Err(err).Msg("denied throttle unavailable, recording anyway")
		} else if !ok {
			metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "throttled").Inc()
			return
		}
	}

	if err := d.repo.Insert(ctx, &ev); err != nil {
		metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "failed").Inc()
		d.log.Error().Err(err).
			Str("type", string(ev.Type)).
			Int64("user_id", ev.UserID).
			Int("worker_id", id).
			Msg("audit event not stored")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "stored").Inc()
}
