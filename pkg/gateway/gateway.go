package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/blevesearch/bleve/v2/mapping"

	"indexgateway/pkg/logger"
)

// CompletionEvent is raised at most once per drained operation, after
// its (attempted) execution, from the goroutine running the drain; it
// is dropped, with a warning logged, when the Completions channel's
// buffer is full. Err is nil
// on success; a non-nil Err means the operation was recovered from or
// dropped, per the Recovery Helper's classification.
type CompletionEvent struct {
	Operation *Operation
	Err       error
}

// Gateway is the public facade: it accepts mutations, enqueues them,
// owns the worker lifecycle, and coordinates flush/reset/shutdown. It
// is the Go analogue of the original "Index Modifier" — re-expressed,
// per the re-architecture guidance, as an explicit dependency holder
// rather than a reach-for-the-global-instance singleton: callers
// construct one via New and pass it wherever it's needed.
type Gateway struct {
	queue    *PriorityQueue
	handle   *IndexHandle
	recovery *RecoveryHelper
	watcher  *CorruptionWatcher

	// wakeup is the single-slot notification primitive standing in
	// for an edge-triggered OS wait handle: a size-1 buffered channel
	// can hold at most one pending "you have work" signal.
	wakeup chan struct{}
	// coalesce absorbs bursts of producer-side signal() calls (a
	// feed-refresh wave enqueueing hundreds of documents) into a
	// single wakeup per debounce window, ahead of the worker's own
	// 5-second pacing.
	coalesce func(func())

	workerRunning   atomic.Bool
	flushInProgress atomic.Bool

	completions chan CompletionEvent

	workerWG sync.WaitGroup
	stopOnce sync.Once
}

// New builds a Gateway over an Index Handle rooted at dir (or an
// in-memory index when dir == ""), using im for new-index creation
// and analyzer for per-operation culture resolution. The worker is
// not started until Start is called.
func New(dir string, im mapping.IndexMapping, analyzer AnalyzerLookup) *Gateway {
	sink := NewDebugSink()
	handle := NewIndexHandle(dir, im, analyzer, DefaultTuning(), sink)
	recovery := NewRecoveryHelper(handle)

	watcher, err := NewCorruptionWatcher(dir, recovery)
	if err != nil {
		logger.Warn("corruption watcher disabled: %v", err)
		watcher = nil
	}

	return &Gateway{
		queue:       NewPriorityQueue(),
		handle:      handle,
		recovery:    recovery,
		watcher:     watcher,
		wakeup:      make(chan struct{}, 1),
		coalesce:    debounce.New(50 * time.Millisecond),
		completions: make(chan CompletionEvent, 256),
	}
}

// Completions returns the channel completion events are published on.
// Callers that don't drain it will simply miss events once its buffer
// fills; it is not a durability guarantee.
func (g *Gateway) Completions() <-chan CompletionEvent {
	return g.completions
}

// Start opens the Index Handle and spawns the dedicated worker.
func (g *Gateway) Start() error {
	if err := g.handle.Init(); err != nil {
		return err
	}
	g.workerRunning.Store(true)
	g.workerWG.Add(1)
	go g.runWorker()
	if g.watcher != nil {
		g.watcher.Start()
	}
	return nil
}

func (g *Gateway) signal() {
	g.coalesce(func() {
		select {
		case g.wakeup <- struct{}{}:
		default:
		}
	})
}

// Add enqueues an AddSingleDocument operation.
func (g *Gateway) Add(doc *Document, culture string) {
	g.enqueue(NewAddSingleDocumentOp(doc, culture))
}

// AddMany enqueues an AddMultipleDocuments operation.
func (g *Gateway) AddMany(docs []*Document, culture string) {
	g.enqueue(NewAddMultipleDocumentsOp(docs, culture))
}

// Delete enqueues a DeleteDocuments operation.
func (g *Gateway) Delete(term Term) {
	g.enqueue(NewDeleteDocumentsOp(term))
}

// DeleteFeed enqueues the same delete-by-term action as Delete, but
// at DeleteFeed's higher priority, so a feed removal overtakes
// pending adds/deletes of its individual items still sitting in the
// queue.
func (g *Gateway) DeleteFeed(term Term) {
	g.enqueue(NewDeleteFeedOp(term))
}

// Optimize enqueues an OptimizeIndex operation.
func (g *Gateway) Optimize() {
	g.enqueue(NewOptimizeIndexOp())
}

func (g *Gateway) enqueue(op *Operation) {
	if !g.workerRunning.Load() {
		// No enqueue is attempted after the gateway signals stop.
		return
	}
	g.queue.Enqueue(op)
	g.signal()
}

// Flush drains up to min(queue_count, 10) pending operations if close
// is true, then flushes the Index Handle itself.
func (g *Gateway) Flush(closeWriterOnly bool) error {
	if closeWriterOnly {
		g.queue.Lock()
		bound := g.queue.CountLocked()
		if bound > 10 {
			bound = 10
		}
		g.queue.Unlock()
		g.drain(bound, true)
	}

	if err := g.handle.Flush(closeWriterOnly); err != nil {
		logger.Warn("flush failed (swallowed): %v", err)
	}
	return nil
}

// Reset clears the queue and resets the on-disk index. I/O errors
// from the reset are propagated to the caller.
func (g *Gateway) Reset() error {
	g.queue.Clear()
	return g.handle.Reset()
}

// Stop stops the worker, waits until no drain is in flight, then
// performs a final closing flush. After Stop returns, no completion
// events are raised and no further enqueue is accepted.
//
// Per invariant 5, the worker is unregistered and the wakeup signal
// released before Close runs: stop flips workerRunning, wakes the
// worker so it observes the flag at its next loop check (or after its
// current operation), waits for the worker goroutine to actually
// exit, and only then flushes and closes the handle.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.workerRunning.Store(false)
		select {
		case g.wakeup <- struct{}{}:
		default:
		}
		g.workerWG.Wait()

		for g.flushInProgress.Load() {
			time.Sleep(50 * time.Millisecond)
		}

		_ = g.Flush(true)
		if g.watcher != nil {
			g.watcher.Stop()
		}
	})
}

// NumDocuments reports the current document count.
func (g *Gateway) NumDocuments() (uint64, error) {
	return g.handle.NumDocuments()
}

// Dispose stops the worker and closes the Index Handle.
func (g *Gateway) Dispose() {
	g.Stop()
	if err := g.handle.Close(); err != nil {
		logger.Warn("index handle close failed: %v", err)
	}
	close(g.completions)
}

func (g *Gateway) publish(op *Operation, err error) {
	select {
	case g.completions <- CompletionEvent{Operation: op, Err: err}:
	default:
		logger.Warn("completion event channel full, dropping event for %s", op.Kind)
	}
}
