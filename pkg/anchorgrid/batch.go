package anchorgrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// IsDocument reports whether name is a workbook the processor accepts. Office
// lock files ("~$...") and hidden files are rejected.
func IsDocument(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// Discover returns the workbooks to process for target: the file itself, or
// the workbooks directly inside a directory in natural order.
func Discover(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsDocument(info.Name()) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, target)
		}
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsDocument(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, target)
	}
	sort.Sort(natural.StringSlice(names))

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(target, n)
	}
	return paths, nil
}

// ProcessBatch processes every workbook of target sequentially. A failing
// document is recorded and the batch continues with the next one; only
// discovery errors and context cancellation are returned.
func (p *Processor) ProcessBatch(ctx context.Context, target string) (*BatchReport, error) {
	paths, err := Discover(target)
	if err != nil {
		return nil, err
	}

	batch := &BatchReport{Documents: make([]*DocumentReport, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		report, err := p.ProcessDocument(ctx, path)
		batch.add(report)
		if err != nil && ctx.Err() != nil {
			return batch, ctx.Err()
		}
	}

	p.Log.Info("Batch finished",
		zap.Int("documents", len(paths)),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed))
	return batch, nil
}
