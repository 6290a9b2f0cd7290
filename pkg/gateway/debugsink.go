package gateway

import (
	"fmt"
	"strings"

	"indexgateway/pkg/logger"
)

// DebugSink receives the underlying index library's verbose messages
// and forwards them to the host logger at debug level. It implements
// io.Writer so it can back the stdlib *log.Logger that NewIndexHandle
// hands to bleve.SetLog, and offers Debugf for callers that already
// have a formatted message.
type DebugSink struct{}

// NewDebugSink returns a ready-to-use sink.
func NewDebugSink() *DebugSink {
	return &DebugSink{}
}

// Write implements io.Writer, forwarding the text to the host logger
// at debug level. It always reports success: a logging shim must
// never cause the writer it is attached to to back up or fail.
func (s *DebugSink) Write(p []byte) (int, error) {
	logger.Debug("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Debugf forwards a formatted message directly, for callers (like the
// merge scheduler adapter) that already have a message in hand rather
// than a raw byte stream.
func (s *DebugSink) Debugf(format string, args ...interface{}) {
	logger.Debug(format, args...)
}

// String reports no decodable character encoding: this is a logging
// shim, not a text stream.
func (s *DebugSink) String() string {
	return "none"
}

var _ fmt.Stringer = (*DebugSink)(nil)
