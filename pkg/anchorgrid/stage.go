package anchorgrid

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
)

const stagingPrefix = ".staging-"

// stage holds the output of one document until it is committed. Images go to
// a private folder under the images root, the output document to a temporary
// file next to its final location.
type stage struct {
	Images   string
	Document string

	finalImages   string
	finalDocument string
}

func newStage(out config.OutputConfig, name string) (*stage, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	s := &stage{
		Images:        filepath.Join(out.Images, stagingPrefix+id.String()),
		Document:      filepath.Join(out.Documents, stagingPrefix+id.String()+".xlsx"),
		finalImages:   filepath.Join(out.Images, name),
		finalDocument: filepath.Join(out.Documents, name+".xlsx"),
	}
	if err := os.MkdirAll(s.Images, 0755); err != nil {
		return nil, fmt.Errorf("unable to create staging folder: %w", err)
	}
	if err := os.MkdirAll(out.Documents, 0755); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to create documents folder: %w", err), os.RemoveAll(s.Images))
	}
	return s, nil
}

// commit moves staged output to its final location, replacing the previous
// output of the same document. Images are committed first; when the document
// cannot be placed they are moved back and the previous images restored.
// withDocument is false when no document was produced.
func (s *stage) commit(withDocument bool) error {
	old := ""
	if _, err := os.Stat(s.finalImages); err == nil {
		old = s.Images + ".old"
		if err := os.Rename(s.finalImages, old); err != nil {
			return fmt.Errorf("unable to retire previous images: %w", err)
		}
	}
	restore := func() error {
		if old == "" {
			return nil
		}
		return os.Rename(old, s.finalImages)
	}

	if err := os.Rename(s.Images, s.finalImages); err != nil {
		return fmt.Errorf("unable to commit images: %w", multierr.Append(err, restore()))
	}

	if withDocument {
		if err := replaceFile(s.Document, s.finalDocument); err != nil {
			err = multierr.Combine(err, os.Rename(s.finalImages, s.Images), restore())
			return fmt.Errorf("unable to commit document: %w", err)
		}
	}

	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}

// rollback discards everything staged.
func (s *stage) rollback() error {
	err := os.RemoveAll(s.Images)
	if rerr := os.Remove(s.Document); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
		err = multierr.Append(err, rerr)
	}
	return err
}

// replaceFile renames tmp over dest, copying when a rename is impossible.
func replaceFile(tmp, dest string) error {
	if err := os.Rename(tmp, dest); err == nil {
		return nil
	}
	if err := copyFile(tmp, dest); err != nil {
		return err
	}
	return os.Remove(tmp)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { err = multierr.Append(err, in.Close()) }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return multierr.Append(fmt.Errorf("failed to copy file contents: %w", err), out.Close())
	}
	return out.Close()
}

// relocate rewrites staged image paths in report to their committed location.
func (s *stage) relocate(report *DocumentReport) {
	move := func(path string) string {
		rel, err := filepath.Rel(s.Images, path)
		if path == "" || err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return path
		}
		return filepath.Join(s.finalImages, rel)
	}

	for i := range report.Fields {
		report.Fields[i].Path = move(report.Fields[i].Path)
	}
	for i := range report.Correlations {
		report.Correlations[i].Path = move(report.Correlations[i].Path)
	}
	for i := range report.Groups {
		for j := range report.Groups[i].Subs {
			report.Groups[i].Subs[j].ImagePath = move(report.Groups[i].Subs[j].ImagePath)
		}
	}
}
