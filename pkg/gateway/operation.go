package gateway

import (
	"time"

	"github.com/google/uuid"
)

// Kind tags one pending index mutation. Each kind carries a fixed
// priority; lower numeric priority drains sooner.
type Kind int

const (
	KindOptimizeIndex Kind = iota
	KindDeleteFeed
	KindAddSingleDocument
	KindAddMultipleDocuments
	KindDeleteDocuments
)

func (k Kind) String() string {
	switch k {
	case KindOptimizeIndex:
		return "OptimizeIndex"
	case KindDeleteFeed:
		return "DeleteFeed"
	case KindAddSingleDocument:
		return "AddSingleDocument"
	case KindAddMultipleDocuments:
		return "AddMultipleDocuments"
	case KindDeleteDocuments:
		return "DeleteDocuments"
	default:
		return "Unknown"
	}
}

// priority returns the fixed priority for a kind. Lower drains first.
//
// Delete of a whole feed must happen before adds/deletes of its
// individual items, otherwise pending item-adds would re-populate a
// feed the user just removed. Optimize is nominally the most urgent
// but is never executed during a final drain (see worker.go). Per-
// document deletes sort last so they follow adds they may target
// within the same batch, letting add+delete churn cancel out.
func (k Kind) priority() int {
	switch k {
	case KindOptimizeIndex:
		return 1
	case KindDeleteFeed:
		return 2
	case KindAddSingleDocument:
		return 10
	case KindAddMultipleDocuments:
		return 11
	case KindDeleteDocuments:
		return 50
	default:
		return 1 << 30
	}
}

// Operation is an immutable pending-mutation record. It is owned by
// the queue, transferred to the worker on dequeue, and released once
// the completion event for it fires. seq is the monotonic tie-breaker
// used to preserve FIFO order within a priority band; it is assigned
// by the queue at enqueue time, not by the caller.
type Operation struct {
	ID         uuid.UUID
	Kind       Kind
	Priority   int
	EnqueuedAt time.Time
	seq        uint64

	Document  *Document
	Documents []*Document
	Term      Term
	Culture   string
}

func newOperation(kind Kind) *Operation {
	return &Operation{
		ID:         uuid.New(),
		Kind:       kind,
		Priority:   kind.priority(),
		EnqueuedAt: time.Now(),
	}
}

// NewAddSingleDocumentOp builds an AddSingleDocument operation.
func NewAddSingleDocumentOp(doc *Document, culture string) *Operation {
	op := newOperation(KindAddSingleDocument)
	op.Document = doc
	op.Culture = culture
	return op
}

// NewAddMultipleDocumentsOp builds an AddMultipleDocuments operation.
func NewAddMultipleDocumentsOp(docs []*Document, culture string) *Operation {
	op := newOperation(KindAddMultipleDocuments)
	op.Documents = docs
	op.Culture = culture
	return op
}

// NewDeleteDocumentsOp builds a DeleteDocuments operation.
func NewDeleteDocumentsOp(term Term) *Operation {
	op := newOperation(KindDeleteDocuments)
	op.Term = term
	return op
}

// NewDeleteFeedOp builds a DeleteFeed operation: same action as
// DeleteDocuments, but enqueued at a higher priority so a feed removal
// overtakes pending adds/deletes of its individual items.
func NewDeleteFeedOp(term Term) *Operation {
	op := newOperation(KindDeleteFeed)
	op.Term = term
	return op
}

// NewOptimizeIndexOp builds an OptimizeIndex operation.
func NewOptimizeIndexOp() *Operation {
	return newOperation(KindOptimizeIndex)
}
