package anchorgrid

import (
	"encoding/json"
	"io"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// FieldReport is the outcome of one configured field.
type FieldReport struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Path is the persisted image of image and range fields.
	Path string `json:"path,omitempty"`
	// Error is set when the field was skipped.
	Error string `json:"error,omitempty"`
}

// DocumentReport summarizes the processing of one source document.
type DocumentReport struct {
	Source string `json:"source"`
	// Name is the sanitized output name.
	Name string `json:"name,omitempty"`
	// Document and Images are the committed output locations.
	Document string `json:"document,omitempty"`
	Images   string `json:"images,omitempty"`

	PhrasesFound     int `json:"phrases_found"`
	PhrasesMissing   int `json:"phrases_missing"`
	ImagesCorrelated int `json:"images_correlated"`
	ImagesMissing    int `json:"images_missing"`

	Fields       []FieldReport              `json:"fields,omitempty"`
	Correlations []models.CorrelationResult `json:"correlations,omitempty"`
	Groups       []models.GroupEntry        `json:"groups,omitempty"`
	// Skipped lists template destinations that could not be filled.
	Skipped []string `json:"skipped,omitempty"`

	Error string `json:"error,omitempty"`
}

// Failed reports whether the document was aborted.
func (r *DocumentReport) Failed() bool {
	return r.Error != ""
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	Documents []*DocumentReport `json:"documents"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

func (b *BatchReport) add(r *DocumentReport) {
	b.Documents = append(b.Documents, r)
	if r.Failed() {
		b.Failed++
	} else {
		b.Succeeded++
	}
}

// WriteJSON writes the report as indented JSON.
func (b *BatchReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(b)
}
