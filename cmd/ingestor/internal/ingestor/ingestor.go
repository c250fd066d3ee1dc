package ingestor

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/ingestor/internal/transform"
	"github.com/takuya-f/kabu-recorder/pkg/config"
)

// Ingestor keeps the logical feed subscription alive indefinitely and fans
// received messages out to a worker pool through an elastic buffer, so
// storage latency never stalls the read loop and no well-formed message is
// discarded before a persistence attempt. Lifecycle: Disconnected ->
// Connecting -> Connected, back to Disconnected on any error or close,
// fixed delay, retry forever.
type Ingestor struct {
	url        string
	retryDelay time.Duration
	numWorkers int
	queueSize  int

	dialer FeedDialer
	store  RecordWriter
	cache  SnapshotWriter
	logger *zap.Logger

	state atomic.Int32
}

func New(cfg *config.Config, logger *zap.Logger, dialer FeedDialer, store RecordWriter, cache SnapshotWriter) *Ingestor {
	retry := cfg.Feed.ReconnectDelay
	if retry <= 0 {
		retry = 5 * time.Second
	}
	queue := cfg.Ingest.QueueSize
	if queue <= 0 {
		queue = 1024
	}
	workers := cfg.Ingest.NumWorkers
	if workers <= 0 {
		workers = 4
	}

	return &Ingestor{
		url:        cfg.Feed.URL,
		retryDelay: retry,
		numWorkers: workers,
		queueSize:  queue,
		dialer:     dialer,
		store:      store,
		cache:      cache,
		logger:     logger,
	}
}

// State reports the current connection lifecycle state.
func (in *Ingestor) State() State {
	return State(in.state.Load())
}

func (in *Ingestor) setState(s State) {
	in.state.Store(int32(s))
}

// Run blocks until ctx is cancelled. Connection failures and dropped
// connections trigger a reconnect after the fixed delay; nothing that happens
// on the stream propagates out as an error.
func (in *Ingestor) Run(ctx context.Context) error {
	intake := make(chan []byte)
	jobs := make(chan []byte, in.queueSize)
	var wg sync.WaitGroup

	for i := 0; i < in.numWorkers; i++ {
		wg.Add(1)
		go in.worker(i, jobs, &wg)
	}
	go in.pump(intake, jobs)

	in.logger.Info("Ingestor Started", zap.String("url", in.url), zap.Int("workers", in.numWorkers))

	for {
		if ctx.Err() != nil {
			break
		}

		in.setState(StateConnecting)
		conn, err := in.dialer.Dial(ctx, in.url)
		if err != nil {
			in.setState(StateDisconnected)
			if ctx.Err() != nil {
				break
			}
			in.logger.Error("Feed connect failed", zap.Error(err))
			in.waitRetry(ctx)
			continue
		}

		in.setState(StateConnected)
		in.logger.Info("Feed connected")

		in.readLoop(ctx, conn, intake)

		in.setState(StateDisconnected)
		conn.Close()
		if ctx.Err() != nil {
			break
		}
		in.logger.Info("Feed disconnected, retrying", zap.Duration("delay", in.retryDelay))
		in.waitRetry(ctx)
	}

	close(intake)
	wg.Wait()
	in.logger.Info("Ingestor stopped")
	return nil
}

// pump moves messages from the read loop to the workers through an elastic
// in-memory buffer. The reader's hand-off never blocks on storage latency and
// nothing is discarded pre-persistence: under saturation the backlog grows
// instead. Closes jobs once intake is closed and the backlog has drained.
func (in *Ingestor) pump(intake <-chan []byte, jobs chan<- []byte) {
	defer close(jobs)
	var pending [][]byte

	for {
		if len(pending) == 0 {
			payload, ok := <-intake
			if !ok {
				return
			}
			pending = append(pending, payload)
		}

		select {
		case payload, ok := <-intake:
			if !ok {
				for _, p := range pending {
					jobs <- p
				}
				return
			}
			pending = append(pending, payload)
			if len(pending)%in.queueSize == 0 {
				in.logger.Warn("Worker backlog growing, storage is not keeping up", zap.Int("backlogged", len(pending)))
			}
		case jobs <- pending[0]:
			pending = pending[1:]
		}
	}
}

// readLoop pulls messages off one connection until it fails. The hand-off to
// the pump is effectively immediate, so the feed's internal buffers never
// back up behind storage.
func (in *Ingestor) readLoop(ctx context.Context, conn FeedConn, intake chan<- []byte) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() // unblock ReadMessage
		case <-done:
		}
	}()

	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				in.logger.Warn("Feed read error", zap.Error(err))
			}
			return
		}

		intake <- payload
	}
}

// worker transforms and persists messages. Failures are logged and dropped;
// a malformed message or a rejected write never stops ingestion.
func (in *Ingestor) worker(id int, jobs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background context so cancellation doesn't abandon an in-flight write
	ctx := context.Background()

	for payload := range jobs {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()

		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			in.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}

		rec, err := transform.Transform(raw)
		if err != nil {
			in.logger.Warn("Dropping malformed message", zap.Error(err))
			continue
		}

		if err := in.store.Put(ctx, rec); err != nil {
			in.logger.Error("Store write failed", zap.String("symbol", rec.Symbol), zap.Error(err))
			continue
		}

		if in.cache != nil {
			if err := in.cache.SetLatest(ctx, rec); err != nil {
				in.logger.Warn("Snapshot cache write failed", zap.String("symbol", rec.Symbol), zap.Error(err))
			}
		}

		in.logger.Debug("Persisted", zap.String("symbol", rec.Symbol), zap.String("get_time", rec.Time), zap.Int("worker_id", id))
	}
}

func (in *Ingestor) waitRetry(ctx context.Context) {
	timer := time.NewTimer(in.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
