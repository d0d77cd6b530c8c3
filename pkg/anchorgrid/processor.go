package anchorgrid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/correlate"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/imgcheck"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/naming"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/raster"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/tags"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/template"
)

// Processor turns source workbooks into correlated images, tag summaries and
// filled output documents. A Processor handles one document at a time.
type Processor struct {
	Config  *config.Config
	Options Options
	Log     *zap.Logger

	correlator *correlate.Correlator
	aggregator *tags.Aggregator
	rasterizer raster.Rasterizer
	writer     *template.Writer
}

// New returns a Processor for a validated configuration.
func New(cfg *config.Config, opts Options, log *zap.Logger) *Processor {
	c := correlate.NewCorrelator(log)
	c.Offset = cfg.Correlation.Offset
	c.Ext = cfg.Correlation.Ext

	a := tags.NewAggregator(cfg.Correlation.Ext)
	if cfg.Correlation.NoTags != "" {
		a.NoTags = cfg.Correlation.NoTags
	}

	return &Processor{
		Config:     cfg,
		Options:    opts,
		Log:        log,
		correlator: c,
		aggregator: a,
		rasterizer: opts.rasterizer(cfg, log),
		writer:     template.NewWriter(cfg, log),
	}
}

// labels is the data available to phrase and name templates.
type labels struct {
	Group string
	Sub   string
}

// ProcessDocument processes one workbook. Failures of single phrases,
// images or fields are recorded in the report and do not stop processing.
// A returned error is a *DocumentError (or the context error); the staged
// output is then discarded and the previous output of the document is kept.
func (p *Processor) ProcessDocument(ctx context.Context, path string) (*DocumentReport, error) {
	report := &DocumentReport{Source: path}
	log := p.Log.With(zap.String("document", filepath.Base(path)))

	if err := p.process(ctx, path, report, log); err != nil {
		report.Error = err.Error()
		log.Error("Document failed", zap.Error(err))
		return report, err
	}

	log.Info("Document processed",
		zap.String("name", report.Name),
		zap.Int("phrases_found", report.PhrasesFound),
		zap.Int("phrases_missing", report.PhrasesMissing),
		zap.Int("images_correlated", report.ImagesCorrelated),
		zap.Int("images_missing", report.ImagesMissing))
	return report, nil
}

func (p *Processor) process(ctx context.Context, path string, report *DocumentReport, log *zap.Logger) error {
	id := filepath.Base(path)
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := grid.Open(path)
	if err != nil {
		return NewDocumentError(id, StageOpen, err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			log.Warn("Unable to close document", zap.Error(err))
		}
	}()

	report.Name = p.documentName(doc, log)

	st, err := newStage(p.Config.Output, report.Name)
	if err != nil {
		return NewDocumentError(id, StageStage, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := st.rollback(); err != nil {
			log.Warn("Unable to discard staged output", zap.Error(err))
		}
	}()

	mapping := &models.TemplateMapping{
		Texts:  make(map[string]string),
		Images: make(map[string]string),
	}
	if err := p.extractFields(ctx, doc, st.Images, mapping, report, log); err != nil {
		return err
	}
	if err := p.correlateGroups(doc, st.Images, mapping, report, log); err != nil {
		return NewDocumentError(id, StageCorrelate, err)
	}

	if !p.Options.ImagesOnly {
		res, err := p.writer.Write(ctx, mapping, p.Config.Naming.Template, st.Document)
		if err != nil {
			return NewDocumentError(id, StageTemplate, err)
		}
		report.Skipped = append(report.Skipped, res.Skipped...)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := st.commit(!p.Options.ImagesOnly); err != nil {
		return NewDocumentError(id, StageCommit, err)
	}
	committed = true

	report.Images = st.finalImages
	if !p.Options.ImagesOnly {
		report.Document = st.finalDocument
	}
	st.relocate(report)
	return nil
}

// documentName builds the output name from the configured name fields. Empty
// values become the upper-cased field name. Without a format the source file
// name is used; a failing format falls back to a timestamped name.
func (p *Processor) documentName(doc *grid.Document, log *zap.Logger) string {
	nc := p.Config.Naming
	if nc.Format == "" {
		if name := safeName(strings.TrimSuffix(filepath.Base(doc.Path), filepath.Ext(doc.Path))); name != "" {
			return name
		}
		return p.fallbackName()
	}

	values := make(map[string]string, len(nc.Fields))
	for _, nf := range nc.Fields {
		v, err := p.cellValue(doc, nf.Sheet, nf.Cell)
		if err != nil {
			log.Warn("Name field unavailable", zap.Error(config.Unavailable(nf.Name, err)))
		}
		if v = naming.Sanitize(strings.TrimSpace(v)); v == "" {
			v = strings.ToUpper(nf.Name)
		}
		values[nf.Name] = v
	}

	name, err := naming.Format("name", nc.Format, values)
	if err != nil {
		log.Warn("Unable to build document name, using fallback", zap.Error(err))
		return p.fallbackName()
	}
	if name = safeName(name); name == "" {
		log.Warn("Document name is empty, using fallback")
		return p.fallbackName()
	}
	return name
}

func (p *Processor) fallbackName() string {
	prefix := p.Config.Naming.Fallback
	if prefix == "" {
		prefix = "document"
	}
	return safeName(prefix + "_" + p.Options.now().Format("20060102_150405"))
}

// safeName sanitizes s for use as a file or folder name. Leading dots are
// dropped so that names never collide with staging entries.
func safeName(s string) string {
	return strings.TrimLeft(naming.Sanitize(strings.TrimSpace(s)), ".")
}

// sourceSheet resolves a logical source sheet in doc.
func (p *Processor) sourceSheet(doc *grid.Document, logical string) (*grid.Sheet, error) {
	idx, err := p.Config.SheetIndex(config.DocSource, logical)
	if err != nil {
		return nil, err
	}
	s, err := doc.SheetAt(idx)
	if err != nil {
		return nil, &config.FieldUnavailableError{DocType: config.DocSource, Sheet: logical, Err: err}
	}
	return s, nil
}

func (p *Processor) cellValue(doc *grid.Document, logical, ref string) (string, error) {
	s, err := p.sourceSheet(doc, logical)
	if err != nil {
		return "", err
	}
	v, _, err := s.Grid.ValueAt(ref)
	if err != nil {
		return "", &config.FieldUnavailableError{DocType: config.DocSource, Sheet: logical, Ref: ref, Err: err}
	}
	return v, nil
}

// extractFields reads every configured field into mapping. Unavailable fields
// are reported and skipped; only context cancellation is returned.
func (p *Processor) extractFields(ctx context.Context, doc *grid.Document, folder string, mapping *models.TemplateMapping, report *DocumentReport, log *zap.Logger) error {
	for _, fd := range p.Config.Fields {
		if err := ctx.Err(); err != nil {
			return err
		}

		fr := FieldReport{Name: fd.Name, Kind: string(fd.Kind)}
		var err error
		switch fd.Kind {
		case config.KindText:
			var v string
			if v, err = p.cellValue(doc, fd.Origin.Sheet, fd.Origin.Cell); err == nil {
				mapping.Texts[fd.Name] = v
			}
		case config.KindImage:
			fr.Path, err = p.imageField(doc, fd, folder)
		case config.KindRange:
			fr.Path, err = p.rangeField(ctx, doc, fd, folder)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if err != nil {
			err = config.Unavailable(fd.Name, err)
			fr.Error = err.Error()
			log.Warn("Field skipped", zap.String("field", fd.Name), zap.Error(err))
		} else if fr.Path != "" {
			mapping.Images[fd.Name] = fr.Path
		}
		report.Fields = append(report.Fields, fr)
	}
	return nil
}

func (p *Processor) imageField(doc *grid.Document, fd config.FieldDescriptor, folder string) (string, error) {
	s, err := p.sourceSheet(doc, fd.Origin.Sheet)
	if err != nil {
		return "", err
	}
	cell, err := grid.ParseCell(fd.Origin.Cell)
	if err != nil {
		return "", err
	}
	return p.correlator.RunCell(s, cell, fd.Name, folder)
}

func (p *Processor) rangeField(ctx context.Context, doc *grid.Document, fd config.FieldDescriptor, folder string) (string, error) {
	s, err := p.sourceSheet(doc, fd.Origin.Sheet)
	if err != nil {
		return "", err
	}
	rng, err := grid.ParseRange(fd.Origin.Range)
	if err != nil {
		return "", err
	}

	data, err := p.rasterizer.Render(ctx, s, rng)
	if err != nil {
		return "", err
	}
	data, info, err := imgcheck.Normalize(data, p.Config.Correlation.Ext)
	if err != nil {
		return "", err
	}

	path := filepath.Join(folder, naming.Sanitize(fd.Name)+"."+info.Ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("unable to write range image: %w", err)
	}
	return path, nil
}

// correlateGroups runs the phrase correlation for every group and sub-group
// and aggregates the tags of the persisted images. Failures of a single
// correlation are counted and logged; only failures to expand the configured
// name templates or to list an image folder are returned.
func (p *Processor) correlateGroups(doc *grid.Document, root string, mapping *models.TemplateMapping, report *DocumentReport, log *zap.Logger) error {
	cc := p.Config.Correlation
	if cc.Phrase == "" {
		return nil
	}

	sheet, err := p.sourceSheet(doc, cc.Sheet)
	if err != nil {
		log.Warn("Correlation skipped", zap.Error(err))
		report.Skipped = append(report.Skipped, "correlation")
		return nil
	}

	for _, group := range cc.Groups {
		groupID, err := naming.Format("group_name", cc.GroupName, labels{Group: group})
		if err != nil {
			return err
		}
		folder := filepath.Join(root, naming.Sanitize(groupID))
		entry := models.GroupEntry{GroupID: groupID, Group: group}
		subIDs := make([]string, 0, len(cc.Subs))

		for _, sub := range cc.Subs {
			data := labels{Group: group, Sub: sub}
			subID, err := naming.Format("sub_name", cc.SubName, data)
			if err != nil {
				return err
			}
			phrase, err := naming.Format("phrase", cc.Phrase, data)
			if err != nil {
				return err
			}

			key := models.GroupKey{GroupID: groupID, SubID: subID, Group: group, Sub: sub}
			res, err := p.correlator.Run(sheet, key, phrase, folder)
			report.Correlations = append(report.Correlations, res)
			switch {
			case err == nil:
				report.PhrasesFound++
				report.ImagesCorrelated++
			case errors.Is(err, correlate.ErrPhraseNotFound):
				report.PhrasesMissing++
				report.ImagesMissing++
				log.Info("Phrase not found", zap.String("phrase", phrase))
			case errors.Is(err, correlate.ErrImageNotFound):
				report.PhrasesFound++
				report.ImagesMissing++
				log.Info("No image in search window", zap.String("phrase", phrase), zap.Error(err))
			default:
				if res.Source != nil {
					report.PhrasesFound++
				} else {
					report.PhrasesMissing++
				}
				report.ImagesMissing++
				log.Warn("Correlated image not saved", zap.String("phrase", phrase), zap.Error(err))
			}

			entry.Subs = append(entry.Subs, models.SubEntry{SubID: subID, ImagePath: res.Path})
			subIDs = append(subIDs, subID)
		}

		for i := range entry.Subs {
			s, err := p.aggregator.AggregateSub(folder, groupID, subIDs[i])
			if err != nil {
				return err
			}
			entry.Subs[i].Tags = s.Title
		}
		s, err := p.aggregator.Aggregate(folder, groupID, subIDs)
		if err != nil {
			return err
		}
		entry.Tags = s.Title
		log.Debug("Group aggregated", zap.String("group", groupID), zap.String("tags", s.Title))

		mapping.Groups = append(mapping.Groups, entry)
	}

	report.Groups = mapping.Groups
	return nil
}
