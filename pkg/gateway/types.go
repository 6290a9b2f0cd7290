package gateway

import "fmt"

// Document is one unit of indexing: a key field identifying the item
// (e.g. a feed item's link) plus whatever body fields the document
// factory upstream decided to attach. The gateway does not interpret
// the field contents; it just hands the map to the index library.
type Document struct {
	Key    string
	Fields map[string]interface{}
}

// Term is a (field, value) delete predicate, also usable as a query
// atom by callers that go around the gateway to read the index.
type Term struct {
	Field string
	Value string
}

// AnalyzerLookup resolves a culture tag (e.g. "en", "de") to the name
// of a registered analyzer. It is supplied by the settings provider,
// never hard-coded in the gateway.
type AnalyzerLookup interface {
	AnalyzerForCulture(culture string) string
	DefaultAnalyzer() string
}

// IndexClosedError is the contract error surfaced when a caller tries
// to operate on an Index Handle that is not open.
type IndexClosedError struct {
	Op string
}

func (e *IndexClosedError) Error() string {
	return fmt.Sprintf("index handle %s: index is closed", e.Op)
}

// UnknownOperationError guards the exhaustive switch over Kind; it
// should be unreachable in practice since Operation is constructed
// exclusively through the New*Op constructors.
type UnknownOperationError struct {
	Kind Kind
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown index operation kind: %d", int(e.Kind))
}
