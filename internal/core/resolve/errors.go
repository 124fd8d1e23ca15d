package resolve

import "fmt"

// DiagnosticKind classifies a non-fatal resolution problem.
type DiagnosticKind string

const (
	// KindDataNotFound: a table had nothing for this id; the next strategy was used.
	KindDataNotFound DiagnosticKind = "data_not_found"
	// KindUnresolvedToken: a story file's token names no stage.
	KindUnresolvedToken DiagnosticKind = "unresolved_token"
	// KindManifestUnmatched: a manifest entry has no story file.
	KindManifestUnmatched DiagnosticKind = "manifest_unmatched"
	// KindSkippedFile: a gameplay file excluded by the event family.
	KindSkippedFile DiagnosticKind = "skipped_file"
	// KindDuplicateKey: two files resolved to the same entry key, or two
	// stages share a display code.
	KindDuplicateKey DiagnosticKind = "duplicate_key"
)

// Warning reports whether the kind points at a data problem rather than an
// expected fallback.
func (k DiagnosticKind) Warning() bool {
	return k != KindDataNotFound
}

// Diagnostic is one non-fatal problem found while resolving an id.
type Diagnostic struct {
	Kind    DiagnosticKind
	ID      string
	File    string
	Message string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s [%s] %s", d.ID, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", d.ID, d.Kind, d.File, d.Message)
}

// OrderingError is returned when an id's unlock graph cannot be linearized.
// Only that id fails; it wraps ordering.ErrCycle.
type OrderingError struct {
	ID  string
	Err error
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("failed to order %s: %v", e.ID, e.Err)
}

func (e *OrderingError) Unwrap() error {
	return e.Err
}
