package gateway

import (
	"fmt"

	"indexgateway/pkg/logger"
)

// mergeScheduler is the Go analogue of the merge-scheduler adapter:
// background segment merging inside bleve/scorch runs on its own
// goroutines, and a failure there must never tear down the host
// process. Since scorch does not give us a handle to its merge
// goroutines directly, guard wraps the writer calls of Add, AddMany,
// Delete and Optimize (Close calls are not wrapped) and converts a
// panic propagating out of the underlying library into a logged error
// returned to the caller, instead of letting it unwind. The next
// write cycle re-attempts the merge, or the Recovery Helper resets
// the index if the underlying store itself is now inconsistent.
type mergeScheduler struct {
	sink *DebugSink
}

func newMergeScheduler(sink *DebugSink) *mergeScheduler {
	return &mergeScheduler{sink: sink}
}

func (s *mergeScheduler) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("merge scheduler recovered panic: %v", r)
			if s.sink != nil {
				s.sink.Debugf("%s", msg)
			}
			logger.Warn("%s", msg)
			err = fmt.Errorf("merge scheduler: %v", r)
		}
	}()
	return fn()
}
