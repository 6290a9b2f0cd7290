package gateway

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/index/upsidedown/store/boltdb"
	"github.com/blevesearch/bleve/v2/mapping"
)

// deleteSearchPageSize bounds how many hits Delete pulls per
// Search/Batch round, mirroring the query-string delete-many pattern
// of iterating hits in pages and re-querying until the page exhausts
// the result set.
const deleteSearchPageSize = 1000

// IndexHandle wraps the single-writer bleve index session: open/
// close, add, delete-by-term, optimize, flush. mu is the mutator lock
// ("SyncRoot"): only one goroutine may be inside a mutating call at a
// time. openMu guards the open flag so assureOpen and Reset cannot
// race each other while a caller is mid-check.
type IndexHandle struct {
	mu     sync.Mutex
	openMu sync.Mutex

	dir      string // "" selects an in-memory index
	mapping  mapping.IndexMapping
	tuning   Tuning
	analyzer AnalyzerLookup
	sink     *DebugSink
	sched    *mergeScheduler

	open  bool
	index bleve.Index
}

// Tuning carries the writer configuration applied at index creation.
// MergeFactor and BufferedDocsPerSegment are the two knobs the
// original spec calls out; bleve/scorch does not expose a public
// force-merge-plan-options hook at index-open time the way the
// original index library did; the buffered-docs knob is honored at
// the batch-assembly layer in AddMany instead, and MergeFactor is
// recorded for Debug Sink reporting only (initLocked reports both).
type Tuning struct {
	MergeFactor            int
	BufferedDocsPerSegment int
}

// DefaultTuning matches the values the spec requires reproduced.
func DefaultTuning() Tuning {
	return Tuning{MergeFactor: 20, BufferedDocsPerSegment: 50}
}

// NewIndexHandle builds a handle over dir (or an in-memory index when
// dir == ""), using im for new-index creation and analyzer for
// per-operation culture resolution. sink receives bleve's verbose
// stream; sched wraps writer calls so a merge-thread failure never
// escapes to the caller.
func NewIndexHandle(dir string, im mapping.IndexMapping, analyzer AnalyzerLookup, tuning Tuning, sink *DebugSink) *IndexHandle {
	if sink != nil {
		bleve.SetLog(log.New(sink, "bleve ", 0))
	}
	return &IndexHandle{
		dir:      dir,
		mapping:  im,
		tuning:   tuning,
		analyzer: analyzer,
		sink:     sink,
		sched:    newMergeScheduler(sink),
	}
}

// Init opens a writer at the configured directory, creating a fresh
// index if none exists there. Safe to call again on a freshly reset
// directory.
func (h *IndexHandle) Init() error {
	h.openMu.Lock()
	defer h.openMu.Unlock()
	return h.initLocked()
}

func (h *IndexHandle) initLocked() error {
	var idx bleve.Index
	var err error

	if h.dir == "" {
		idx, err = bleve.NewMemOnly(h.mapping)
	} else {
		idx, err = bleve.Open(h.dir)
		if err != nil {
			if h.sink != nil {
				h.sink.Debugf("opening index at %s failed (%v), creating new index", h.dir, err)
			}
			idx, err = bleve.NewUsing(h.dir, h.mapping, scorch.Name, boltdb.Name, nil)
		}
	}
	if err != nil {
		return err
	}

	h.index = idx
	h.open = true
	if h.sink != nil {
		h.sink.Debugf("index opened: merge factor %d, buffered docs per segment %d", h.tuning.MergeFactor, h.tuning.BufferedDocsPerSegment)
	}
	return nil
}

// assureOpen fails with IndexClosedError when the handle is not open.
// It takes the open-lock so it observes a consistent view during a
// concurrent Reset.
func (h *IndexHandle) assureOpen(op string) error {
	h.openMu.Lock()
	defer h.openMu.Unlock()
	if !h.open {
		return &IndexClosedError{Op: op}
	}
	return nil
}

// IsOpen reports the current open flag.
func (h *IndexHandle) IsOpen() bool {
	h.openMu.Lock()
	defer h.openMu.Unlock()
	return h.open
}

func (h *IndexHandle) analyzerFor(culture string) string {
	if culture == "" {
		return h.analyzer.DefaultAnalyzer()
	}
	return h.analyzer.AnalyzerForCulture(culture)
}

// Add appends a single document. The culture is resolved through the
// analyzer lookup but not applied: the document is analyzed with the
// index mapping's default analyzer whatever culture is given.
func (h *IndexHandle) Add(doc *Document, culture string) error {
	if err := h.assureOpen("add"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	// bleve resolves analyzers per mapping, not per Index() call, so
	// there is no writer-level hook to pass this through to; the
	// resolved name is discarded, and an unknown culture is not
	// reported (the lookup falls back to the default analyzer).
	_ = h.analyzerFor(culture)
	return h.sched.guard(func() error {
		return h.index.Index(doc.Key, doc.Fields)
	})
}

// AddMany appends documents in writer batches of at most
// BufferedDocsPerSegment documents each; batches committed before a
// failing one stay in the index. As in Add, the culture is resolved
// but not applied.
func (h *IndexHandle) AddMany(docs []*Document, culture string) error {
	if err := h.assureOpen("add_many"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	_ = h.analyzerFor(culture)
	chunk := h.tuning.BufferedDocsPerSegment
	if chunk <= 0 {
		chunk = len(docs)
	}

	for start := 0; start < len(docs); start += chunk {
		end := start + chunk
		if end > len(docs) {
			end = len(docs)
		}
		batch := h.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.Key, doc.Fields); err != nil {
				return err
			}
		}
		if err := h.sched.guard(func() error { return h.index.Batch(batch) }); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every document whose indexed field matches term,
// paging through search results the way a query-string delete-many
// would.
func (h *IndexHandle) Delete(term Term) error {
	if err := h.assureOpen("delete"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	q := bleve.NewQueryStringQuery(fmt.Sprintf("%s:%s", term.Field, term.Value))
	req := bleve.NewSearchRequest(q)
	req.Size = deleteSearchPageSize

	return h.sched.guard(func() error {
		for {
			result, err := h.index.Search(req)
			if err != nil {
				return err
			}
			if len(result.Hits) == 0 {
				return nil
			}
			batch := h.index.NewBatch()
			for _, hit := range result.Hits {
				batch.Delete(hit.ID)
			}
			if err := h.index.Batch(batch); err != nil {
				return err
			}
			if result.Total <= uint64(req.Size) {
				return nil
			}
		}
	})
}

// Optimize merges segments for read-side performance. bleve/scorch
// schedules merges on its own background planner rather than
// exposing a synchronous force-merge-to-one-segment call; Optimize
// forces a writer flush so any segments already queued for merge
// become visible promptly, which is the closest equivalent this
// library exposes.
func (h *IndexHandle) Optimize() error {
	if err := h.assureOpen("optimize"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sched.guard(func() error {
		return h.index.Batch(h.index.NewBatch())
	})
}

// Flush closes the current writer to force on-disk visibility. If
// closeWriterOnly is false, a fresh writer is reopened afterward.
func (h *IndexHandle) Flush(closeWriterOnly bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.openMu.Lock()
	var closeErr error
	if h.index != nil {
		closeErr = h.index.Close()
	}
	h.index = nil
	h.open = false
	h.openMu.Unlock()

	if closeErr != nil {
		return closeErr
	}
	if closeWriterOnly {
		return nil
	}

	h.openMu.Lock()
	defer h.openMu.Unlock()
	return h.initLocked()
}

// Reset closes the writer, and for an on-disk index removes and
// recreates its directory; an in-memory index is simply reopened
// fresh. Directory mutation happens outside the open-lock to avoid a
// lock inversion between the filesystem and the open-state lock: the
// open flag is dropped first, the directory is removed unlocked, and
// only the final reopen re-takes the open-lock.
func (h *IndexHandle) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.openMu.Lock()
	if h.index != nil {
		_ = h.index.Close()
	}
	h.index = nil
	h.open = false
	dir := h.dir
	h.openMu.Unlock()

	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	h.openMu.Lock()
	defer h.openMu.Unlock()
	return h.initLocked()
}

// Close closes the writer and marks the handle not open. Idempotent.
func (h *IndexHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.openMu.Lock()
	defer h.openMu.Unlock()
	if !h.open {
		return nil
	}
	err := h.index.Close()
	h.index = nil
	h.open = false
	return err
}

// NumDocuments reports the current document count under the mutator
// lock.
func (h *IndexHandle) NumDocuments() (uint64, error) {
	if err := h.assureOpen("num_documents"); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index.DocCount()
}
