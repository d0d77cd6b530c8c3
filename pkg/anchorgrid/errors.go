package anchorgrid

import (
	"errors"
	"fmt"
)

// ErrNoDocuments indicates that a batch directory holds no workbooks.
var ErrNoDocuments = errors.New("no documents found")

// ErrUnsupportedDocument indicates that a path is not an xlsx or xlsm workbook.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// Document processing stages reported by DocumentError.
const (
	StageOpen      = "open"
	StageStage     = "stage"
	StageCorrelate = "correlate"
	StageTemplate  = "template"
	StageCommit    = "commit"
)

// DocumentError is a failure that aborts the processing of one document.
// Nothing it reports affects other documents of a batch.
type DocumentError struct {
	Document string
	Stage    string
	Err      error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q failed at %s: %v", e.Document, e.Stage, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// NewDocumentError creates a new DocumentError.
func NewDocumentError(document, stage string, err error) *DocumentError {
	return &DocumentError{
		Document: document,
		Stage:    stage,
		Err:      err,
	}
}
