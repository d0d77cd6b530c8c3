package models

// GroupKey identifies one logical group/sub-group pairing, e.g. an antenna
// and one of its sectors.
type GroupKey struct {
	// GroupID is the rendered group label (folder name and filename prefix).
	GroupID string `json:"group_id"`
	// SubID is the rendered sub-group label.
	SubID string `json:"sub_id"`
	// Group is the raw group value the labels were rendered from.
	Group string `json:"group"`
	// Sub is the raw sub-group value.
	Sub string `json:"sub"`
}

// CorrelationResult is the outcome of one phrase lookup.
type CorrelationResult struct {
	Key GroupKey `json:"key"`
	// Phrase is the searched phrase.
	Phrase string `json:"phrase"`
	// Source is the matched cell coordinate (nil if the phrase was not found).
	Source *Coord `json:"source,omitempty"`
	// Window is the resolved search window.
	Window SearchWindow `json:"window"`
	// Image is the correlated image, nil when none was found.
	Image *AnchoredImage `json:"image,omitempty"`
	// Annotation is the trailing text captured after ':' in the matched cell.
	Annotation string `json:"annotation,omitempty"`
	// Path is where the image was persisted.
	Path string `json:"path,omitempty"`
}

// SubEntry holds the output of a single sub-group.
type SubEntry struct {
	SubID string `json:"sub_id"`
	// ImagePath is empty when no image was correlated.
	ImagePath string `json:"image_path,omitempty"`
	// Tags is the aggregated tag string of this sub-group alone.
	Tags string `json:"tags"`
}

// GroupEntry holds the output of one group across its sub-groups.
type GroupEntry struct {
	GroupID string     `json:"group_id"`
	Group   string     `json:"group"`
	Subs    []SubEntry `json:"subs"`
	// Tags is the aggregated tag string over all sub-groups.
	Tags string `json:"tags"`
}

// TemplateMapping is everything the template writer needs for one source
// document.
type TemplateMapping struct {
	// Texts maps text field names to extracted values.
	Texts map[string]string `json:"texts"`
	// Images maps image and range field names to persisted file paths.
	Images map[string]string `json:"images"`
	// Groups lists correlated groups in configured order.
	Groups []GroupEntry `json:"groups"`
}
