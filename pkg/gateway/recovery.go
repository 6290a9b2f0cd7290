package gateway

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"

	"indexgateway/pkg/logger"
)

// retryDelay is the pause taken after an access-denied failure before
// giving up on that operation (no retry is attempted at this layer).
const retryDelay = 1000 * time.Millisecond

// recoveryAction is the outcome of classifying a failure raised while
// performing an operation against the Index Handle.
type recoveryAction int

const (
	actionDrop recoveryAction = iota
	actionResetIndex
	actionWaitNoRetry
	actionRepairSegmentsNew
	actionRepairDeleteableNew
)

// classify maps a failure from the Index Handle to the action the
// Recovery Helper takes, per the fixed catalog of recoverable index-
// corruption and lock-contention failures. Message-substring matching
// is isolated to this one function so every other caller only ever
// sees the enumerated recoveryAction.
func classify(err error) recoveryAction {
	if err == nil {
		return actionDrop
	}

	if errors.Is(err, os.ErrNotExist) || errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return actionResetIndex
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "out of range") {
		return actionResetIndex
	}
	if errors.Is(err, os.ErrPermission) || strings.Contains(lower, "permission denied") || strings.Contains(lower, "access is denied") {
		return actionWaitNoRetry
	}
	if strings.Contains(msg, "segments.new") {
		return actionRepairSegmentsNew
	}
	if strings.Contains(msg, "deleteable.new") {
		return actionRepairDeleteableNew
	}
	return actionDrop
}

// RecoveryHelper dispatches operations against an Index Handle and
// repairs the known set of partial-write artifacts, or triggers a
// full index reset, when the handle reports a recoverable failure.
type RecoveryHelper struct {
	handle *IndexHandle
}

// NewRecoveryHelper builds a helper bound to handle.
func NewRecoveryHelper(handle *IndexHandle) *RecoveryHelper {
	return &RecoveryHelper{handle: handle}
}

// Perform dispatches op by kind and classifies any failure. The op is
// never requeued: partial progress is preferred over an unbounded
// retry storm. Perform returns the (possibly recovered-from) error
// only to let the caller log it; the worker always treats Perform as
// "done" for the purposes of advancing the drain.
func (r *RecoveryHelper) Perform(op *Operation) error {
	err := r.dispatch(op)
	if err == nil {
		return nil
	}

	switch classify(err) {
	case actionResetIndex:
		logger.Warn("index corrupted (%v), resetting index", err)
		if resetErr := r.handle.Reset(); resetErr != nil {
			logger.Error("index reset failed: %v", resetErr)
			return resetErr
		}
		return err

	case actionWaitNoRetry:
		logger.Warn("index access denied (%v), waiting %s, not retrying", err, retryDelay)
		time.Sleep(retryDelay)
		return err

	case actionRepairSegmentsNew:
		logger.Warn("repairing segments.new after error: %v", err)
		if repairErr := r.renameOver("segments.new", "segments"); repairErr != nil {
			logger.Error("segments.new repair failed: %v", repairErr)
			return repairErr
		}
		return err

	case actionRepairDeleteableNew:
		logger.Warn("repairing deleteable.new after error: %v", err)
		if repairErr := r.renameOver("deleteable.new", "deleteable"); repairErr != nil {
			logger.Error("deleteable.new repair failed: %v", repairErr)
			return repairErr
		}
		return err

	default:
		logger.Warn("dropping failed operation %s: %v", op.Kind, err)
		return err
	}
}

func (r *RecoveryHelper) renameOver(newName, stableName string) error {
	dir := r.handle.dir
	if dir == "" {
		return nil
	}
	src := filepath.Join(dir, newName)
	dst := filepath.Join(dir, stableName)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Rename(src, dst)
}

func (r *RecoveryHelper) dispatch(op *Operation) error {
	switch op.Kind {
	case KindOptimizeIndex:
		return r.handle.Optimize()
	case KindDeleteFeed, KindDeleteDocuments:
		return r.handle.Delete(op.Term)
	case KindAddSingleDocument:
		return r.handle.Add(op.Document, op.Culture)
	case KindAddMultipleDocuments:
		return r.handle.AddMany(op.Documents, op.Culture)
	default:
		return &UnknownOperationError{Kind: op.Kind}
	}
}
