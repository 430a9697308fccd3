package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/kafka"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/metrics"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"go.uber.org/zap"
)

// Source is a committing Kafka reader.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Sink stores decision events.
type Sink interface {
	InsertBatch(ctx context.Context, events []model.DecisionEvent) error
}

// DecisionsProjector:
// - fetches decision events from Kafka,
// - parses them on a pool of processors,
// - writes them to ClickHouse in size/time bounded batches,
// - commits offsets only after the batch holding them is stored.
//
// Delivery is at-least-once; the ClickHouse table collapses replays by id.
type DecisionsProjector struct {
	// Dependencies
	Consumer Source
	Sink     Sink

	// Behavior
	Workers      int           // number of goroutines parsing messages
	BatchSize    int           // max buffered events per flush
	BatchWait    time.Duration // max time to wait before flush
	RetryWait    time.Duration // pause between failed flush attempts
	FlushTimeout time.Duration // budget for the final flush on shutdown

	offsets *offsetTracker
}

// NewDecisionsProjector builds a worker with sane defaults.
func NewDecisionsProjector(consumer Source, sink Sink) *DecisionsProjector {
	return &DecisionsProjector{
		Consumer:     consumer,
		Sink:         sink,
		Workers:      8,
		BatchSize:    500,
		BatchWait:    500 * time.Millisecond,
		RetryWait:    time.Second,
		FlushTimeout: 10 * time.Second,
	}
}

type projectItem struct {
	msg   kafka.Message
	event model.DecisionEvent
	skip  bool // poison: commit without storing
}

// Run starts the worker and blocks until ctx is cancelled and the last batch
// is flushed.
func (w *DecisionsProjector) Run(ctx context.Context) error {
	if w.Consumer == nil || w.Sink == nil {
		return errors.New("decisions-projector: consumer and sink are required")
	}
	if w.Workers <= 0 {
		w.Workers = 8
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 500 * time.Millisecond
	}
	if w.RetryWait <= 0 {
		w.RetryWait = time.Second
	}
	if w.FlushTimeout <= 0 {
		w.FlushTimeout = 10 * time.Second
	}
	w.offsets = newOffsetTracker()

	msgCh := make(chan kafka.Message, w.Workers*2)
	items := make(chan projectItem, w.BatchSize*2)

	// Batch writer
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.runBatchWriter(ctx, items)
	}()

	// Processors drain msgCh until the fetcher closes it
	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				items <- parseDecision(m)
			}
		}()
	}

	// Fetch loop
	w.fetch(ctx, msgCh)
	close(msgCh)

	wg.Wait()
	close(items)
	<-writerDone

	return nil
}

func (w *DecisionsProjector) fetch(ctx context.Context, out chan<- kafka.Message) {
	for {
		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		metrics.ProjectorEvents.WithLabelValues("consumed").Inc()
		w.offsets.track(m)

		select {
		case out <- m:
		case <-ctx.Done():
			// fetched but never processed; it is redelivered after restart
			return
		}
	}
}

func parseDecision(m kafka.Message) projectItem {
	var evt model.DecisionEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		logger.Log.Warn("bad decision event json",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		return projectItem{msg: m, skip: true}
	}
	if evt.ID == "" || evt.CustomerID <= 0 || !evt.Kind.Valid() {
		logger.Log.Warn("decision event missing id, customer or kind",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		return projectItem{msg: m, skip: true}
	}
	return projectItem{msg: m, event: evt}
}

// runBatchWriter does size/time-based flushes into the sink, then commits.
// A failed flush is retried until it succeeds or the writer's context ends,
// which stalls the processors and, through them, the fetcher.
func (w *DecisionsProjector) runBatchWriter(ctx context.Context, in <-chan projectItem) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		events []model.DecisionEvent
		msgs   []kafka.Message
		poison int
	)

	flush := func(ctx context.Context) {
		if len(msgs) == 0 {
			return
		}

		for len(events) > 0 {
			err := w.Sink.InsertBatch(ctx, events)
			if err == nil {
				break
			}
			metrics.ProjectorEvents.WithLabelValues("failed").Add(float64(len(events)))
			logger.Log.Error("clickhouse insert failed", zap.Int("events", len(events)), zap.Error(err))

			select {
			case <-ctx.Done():
				// offsets stay uncommitted; the batch is redelivered
				return
			case <-time.After(w.RetryWait):
			}
		}

		metrics.ProjectorEvents.WithLabelValues("flushed").Add(float64(len(events)))
		metrics.ProjectorEvents.WithLabelValues("poison").Add(float64(poison))

		if commits := w.offsets.complete(msgs); len(commits) > 0 {
			if err := w.Consumer.Commit(ctx, commits...); err != nil {
				logger.Log.Warn("kafka commit failed", zap.Error(err))
			}
		}

		logger.Log.Debug("decisions flushed", zap.Int("events", len(events)), zap.Int("poison", poison))

		events = events[:0]
		msgs = msgs[:0]
		poison = 0
	}

	for {
		select {
		case it, ok := <-in:
			if !ok {
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.FlushTimeout)
				flush(final)
				cancel()
				return
			}
			msgs = append(msgs, it.msg)
			if it.skip {
				poison++
			} else {
				events = append(events, it.event)
			}

			if len(msgs) >= w.BatchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}
