// Package tags aggregates the tags encoded in persisted image file names.
package tags

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/naming"
)

// NoTags is the reference summary title used when a group carries no tags.
const NoTags = "Sin tecnologías"

// Separator joins sorted tags in a summary title.
const Separator = " + "

// Summary is the aggregated tag set of one group.
type Summary struct {
	// Tags is the de-duplicated, sorted tag set.
	Tags []string `json:"tags"`
	// Title is Tags joined with Separator, or the no-tags sentinel.
	Title string `json:"title"`
	// Files lists the matched file names in scan order.
	Files []string `json:"files,omitempty"`
}

// Empty reports whether no tag was found.
func (s Summary) Empty() bool {
	return len(s.Tags) == 0
}

// Aggregator collects tags from "{groupId}_{subId}*.{ext}" files.
type Aggregator struct {
	// Ext is the image extension matched, without the dot.
	Ext string
	// NoTags replaces the title of an empty summary.
	NoTags string
}

// NewAggregator returns an Aggregator with the reference sentinel.
func NewAggregator(ext string) *Aggregator {
	return &Aggregator{Ext: ext, NoTags: NoTags}
}

// Aggregate is a convenience for NewAggregator(ext).Aggregate.
func Aggregate(folder, groupID string, subIDs []string, ext string) (Summary, error) {
	return NewAggregator(ext).Aggregate(folder, groupID, subIDs)
}

// Aggregate folds the tags of every file belonging to groupID and any of
// subIDs into one case-sensitive set. A file belongs to a sub-group when its
// name matches "{groupId}_{subId}*.{ext}" literally. The result depends only
// on the names present in folder; a missing folder yields an empty summary.
func (a *Aggregator) Aggregate(folder, groupID string, subIDs []string) (Summary, error) {
	return a.aggregate(folder, groupID, subIDs, false)
}

// AggregateSub returns the tags of the files of a single sub-group. Unlike
// Aggregate, the sub id must be followed by "_(" or the extension, so that
// "Sector_1" does not collect the files of "Sector_10".
func (a *Aggregator) AggregateSub(folder, groupID, subID string) (Summary, error) {
	return a.aggregate(folder, groupID, []string{subID}, true)
}

func (a *Aggregator) aggregate(folder, groupID string, subIDs []string, exact bool) (Summary, error) {
	entries, err := os.ReadDir(folder)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Summary{}, fmt.Errorf("unable to list %s: %w", folder, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	suffix := "." + strings.TrimPrefix(a.Ext, ".")
	set := make(map[string]struct{})
	var files []string

	for _, sub := range subIDs {
		prefix := naming.Sanitize(groupID) + "_" + naming.Sanitize(sub)
		for _, name := range names {
			if len(name) < len(prefix)+len(suffix) || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
				continue
			}
			if rest := name[len(prefix):]; exact && rest != suffix && !strings.HasPrefix(rest, "_(") {
				continue
			}
			files = append(files, name)
			for _, tag := range ParseTags(name) {
				set[tag] = struct{}{}
			}
		}
	}

	return a.summarize(set, files), nil
}

func (a *Aggregator) summarize(set map[string]struct{}, files []string) Summary {
	s := Summary{Tags: make([]string, 0, len(set)), Files: files}
	for tag := range set {
		s.Tags = append(s.Tags, tag)
	}
	slices.Sort(s.Tags)

	s.Title = strings.Join(s.Tags, Separator)
	if s.Empty() {
		s.Title = a.NoTags
	}
	return s
}

// ParseTags returns the tags of the first parenthesized segment of name, in
// the order they appear. Tags are separated by ',', '-' or '+'.
func ParseTags(name string) []string {
	_, rest, ok := strings.Cut(name, "(")
	if !ok {
		return nil
	}
	segment, _, ok := strings.Cut(rest, ")")
	if !ok {
		return nil
	}

	var tags []string
	for _, f := range strings.FieldsFunc(segment, isSeparator) {
		if t := strings.TrimSpace(f); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func isSeparator(r rune) bool {
	return r == ',' || r == '-' || r == '+'
}

