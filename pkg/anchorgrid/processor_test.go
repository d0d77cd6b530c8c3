package anchorgrid

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/internal/fixture"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/raster"
)

// sourceWorkbook has the site code on "Info" and the tower photos on
// "Towers". Sector a has a picture above its phrase, sector b has a phrase
// but no picture, sector c has no phrase at all.
func sourceWorkbook(t *testing.T, dir, name string) string {
	t.Helper()
	return fixture.Workbook{
		Sheets: []string{"Info", "Towers"},
		Values: map[string]map[string]any{
			"Info": {
				"A1": "LIM 001",
				"C1": "north",
				"C2": "south",
			},
			"Towers": {
				"B20": "Foto general de la antena 1 sector a: LTE-NR",
				"F20": "Foto general de la antena 1 sector b",
			},
		},
		Merges: map[string][]string{
			"Towers": {"B20:D20"},
		},
		Pictures: map[string]map[string][]byte{
			"Info":   {"B5": fixture.PNG(t, 30, 30, color.Black)},
			"Towers": {"C10": fixture.PNG(t, 40, 20, color.White)},
		},
	}.Save(t, dir, name)
}

func templateWorkbook(t *testing.T, dir string) string {
	t.Helper()
	return fixture.Workbook{
		Sheets: []string{"Report"},
		Values: map[string]map[string]any{
			"Report": {
				"A1": "8.1 TECH",
				"A2": "Site SITE_ID",
			},
		},
	}.Save(t, dir, "template.xlsx")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Sheets[config.DocSource] = map[string]int{"info": 0, "towers": 1, "absent": 7}
	cfg.Sheets[config.DocTemplate] = map[string]int{"report": 0}
	cfg.Fields = []config.FieldDescriptor{
		{
			Name:        "site",
			Kind:        config.KindText,
			Origin:      config.Origin{Sheet: "info", Cell: "A1"},
			Destination: config.Destination{Sheet: "report", Cells: []string{"C3"}},
		},
		{
			Name:        "photo",
			Kind:        config.KindImage,
			Origin:      config.Origin{Sheet: "info", Cell: "B5"},
			Destination: config.Destination{Sheet: "report", Cells: []string{"E1"}},
		},
		{
			Name:   "lost",
			Kind:   config.KindText,
			Origin: config.Origin{Sheet: "absent", Cell: "A1"},
		},
	}
	cfg.Naming = config.NamingConfig{
		Fields:   []config.NameField{{Name: "site", Sheet: "info", Cell: "A1"}},
		Format:   "SID_{{.site}}",
		Fallback: "SID_GENERADO",
		Template: templateWorkbook(t, dir),
	}
	cfg.Correlation.Sheet = "towers"
	cfg.Correlation.Groups = []string{"1"}
	cfg.Correlation.Destination = config.GroupDestination{
		Sheet: "report",
		Cells: map[string][]string{"1": {"B10", "C10", "D10"}},
	}
	cfg.Placeholders.Identifiers = map[string]string{"SITE_ID": "site"}
	cfg.Output = config.OutputConfig{
		Images:    filepath.Join(dir, "images"),
		Documents: filepath.Join(dir, "output"),
	}
	cfg.Raster.Delay = "0s"
	require.NoError(t, cfg.Validate())
	return cfg
}

func assertNoStaging(t *testing.T, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), stagingPrefix), "leftover %s", e.Name())
		}
	}
}

func TestProcessDocument(t *testing.T) {
	cfg := testConfig(t)
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")

	report, err := New(cfg, DefaultOptions(), zap.NewNop()).ProcessDocument(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	assert.Equal(t, "SID_LIM_001", report.Name)
	assert.Equal(t, filepath.Join(cfg.Output.Documents, "SID_LIM_001.xlsx"), report.Document)
	assert.Equal(t, filepath.Join(cfg.Output.Images, "SID_LIM_001"), report.Images)

	assert.Equal(t, 2, report.PhrasesFound)
	assert.Equal(t, 1, report.PhrasesMissing)
	assert.Equal(t, 1, report.ImagesCorrelated)
	assert.Equal(t, 2, report.ImagesMissing)

	sectorA := filepath.Join(report.Images, "Antena_1", "Antena_1_Sector_a_(LTE-NR).png")
	assert.FileExists(t, sectorA)
	assert.FileExists(t, filepath.Join(report.Images, "photo.png"))

	require.Len(t, report.Correlations, 3)
	assert.Equal(t, sectorA, report.Correlations[0].Path)
	assert.Equal(t, "LTE-NR", report.Correlations[0].Annotation)
	assert.Equal(t, models.Coord{Row: 10, Col: 3}, report.Correlations[0].Image.Anchor)
	assert.Empty(t, report.Correlations[1].Path)
	assert.Nil(t, report.Correlations[2].Source)

	require.Len(t, report.Groups, 1)
	group := report.Groups[0]
	assert.Equal(t, "Antena_1", group.GroupID)
	assert.Equal(t, "LTE + NR", group.Tags)
	require.Len(t, group.Subs, 3)
	assert.Equal(t, sectorA, group.Subs[0].ImagePath)
	assert.Equal(t, "LTE + NR", group.Subs[0].Tags)
	assert.Equal(t, "Sin tecnologías", group.Subs[1].Tags)
	assert.Equal(t, "Sin tecnologías", group.Subs[2].Tags)

	require.Len(t, report.Fields, 3)
	assert.Empty(t, report.Fields[0].Error)
	assert.Equal(t, filepath.Join(report.Images, "photo.png"), report.Fields[1].Path)
	assert.Contains(t, report.Fields[2].Error, "lost")

	f, err := excelize.OpenFile(report.Document)
	require.NoError(t, err)
	defer f.Close()

	cells := map[string]string{
		"A1": "8.1 LTE + NR",
		"A2": "Site LIM 001",
		"C3": "LIM 001",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue("Report", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
	pics, err := f.GetPictureCells("Report")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"E1", "B10"}, pics)

	assertNoStaging(t, cfg.Output.Images, cfg.Output.Documents)
}

func TestProcessDocumentReplacesPreviousOutput(t *testing.T) {
	cfg := testConfig(t)
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")
	p := New(cfg, DefaultOptions(), zap.NewNop())

	first, err := p.ProcessDocument(context.Background(), src)
	require.NoError(t, err)
	stale := filepath.Join(first.Images, "stale.png")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

	second, err := p.ProcessDocument(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, first.Images, second.Images)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(second.Images, "photo.png"))

	entries, err := os.ReadDir(cfg.Output.Images)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assertNoStaging(t, cfg.Output.Images, cfg.Output.Documents)
}

func TestProcessDocumentOpenFailure(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("not a workbook"), 0644))

	report, err := New(cfg, DefaultOptions(), zap.NewNop()).ProcessDocument(context.Background(), src)
	require.Error(t, err)
	assert.True(t, report.Failed())

	var de *DocumentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageOpen, de.Stage)
	assert.Equal(t, "broken.xlsx", de.Document)

	assert.NoDirExists(t, cfg.Output.Images)
	assert.NoDirExists(t, cfg.Output.Documents)
}

func TestProcessDocumentTemplateFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Naming.Template = filepath.Join(t.TempDir(), "absent.xlsx")
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")

	_, err := New(cfg, DefaultOptions(), zap.NewNop()).ProcessDocument(context.Background(), src)
	var de *DocumentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageTemplate, de.Stage)

	entries, err := os.ReadDir(cfg.Output.Images)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assertNoStaging(t, cfg.Output.Documents)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Documents, "SID_LIM_001.xlsx"))
}

func TestProcessDocumentCanceled(t *testing.T) {
	cfg := testConfig(t)
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, DefaultOptions(), zap.NewNop()).ProcessDocument(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, cfg.Output.Images)
}

func TestProcessDocumentImagesOnly(t *testing.T) {
	cfg := testConfig(t)
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")

	report, err := New(cfg, Options{ImagesOnly: true}, zap.NewNop()).ProcessDocument(context.Background(), src)
	require.NoError(t, err)

	assert.Empty(t, report.Document)
	assert.FileExists(t, filepath.Join(report.Images, "Antena_1", "Antena_1_Sector_a_(LTE-NR).png"))

	entries, err := os.ReadDir(cfg.Output.Documents)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessDocumentMissingCorrelationSheet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Correlation.Sheet = "absent"
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")

	report, err := New(cfg, DefaultOptions(), zap.NewNop()).ProcessDocument(context.Background(), src)
	require.NoError(t, err)
	assert.Contains(t, report.Skipped, "correlation")
	assert.Empty(t, report.Groups)
	assert.Zero(t, report.PhrasesFound)
}

func TestProcessDocumentUnencodableExt(t *testing.T) {
	cfg := testConfig(t)
	cfg.Correlation.Ext = "webp"
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)

	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")
	report, err := New(cfg, DefaultOptions(), zap.NewNop()).ProcessDocument(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	assert.Equal(t, 2, report.PhrasesFound)
	assert.Equal(t, 1, report.PhrasesMissing)
	assert.Zero(t, report.ImagesCorrelated)
	assert.Equal(t, 3, report.ImagesMissing)

	require.Len(t, report.Correlations, 3)
	assert.NotNil(t, report.Correlations[0].Image)
	assert.Empty(t, report.Correlations[0].Path)
	assert.Contains(t, report.Fields[1].Error, "webp")

	require.Len(t, report.Groups, 1)
	assert.Equal(t, "Sin tecnologías", report.Groups[0].Tags)
	assert.FileExists(t, report.Document)
	assertNoStaging(t, cfg.Output.Images, cfg.Output.Documents)
}

func TestProcessDocumentRangeField(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fields = append(cfg.Fields, config.FieldDescriptor{
		Name:   "sectors",
		Kind:   config.KindRange,
		Origin: config.Origin{Sheet: "info", Range: "C1:C2"},
	})
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")

	var got models.Range
	calls := 0
	opts := Options{Rasterizer: raster.RasterizerFunc(func(_ context.Context, _ *grid.Sheet, rng models.Range) ([]byte, error) {
		calls++
		got = rng
		if calls == 1 {
			return nil, errors.New("busy")
		}
		return fixture.PNG(t, 8, 8, color.White), nil
	})}

	report, err := New(cfg, opts, zap.NewNop()).ProcessDocument(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, models.Range{R1: 1, C1: 3, R2: 2, C2: 3}, got)
	require.Len(t, report.Fields, 4)
	assert.Empty(t, report.Fields[3].Error)
	assert.Equal(t, filepath.Join(report.Images, "sectors.png"), report.Fields[3].Path)
	assert.FileExists(t, report.Fields[3].Path)
}

func TestProcessDocumentRangeFieldExhausted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Raster.Attempts = 2
	cfg.Fields = []config.FieldDescriptor{{
		Name:   "sectors",
		Kind:   config.KindRange,
		Origin: config.Origin{Sheet: "info", Range: "C1:C2"},
	}}
	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")

	opts := Options{Rasterizer: raster.RasterizerFunc(func(context.Context, *grid.Sheet, models.Range) ([]byte, error) {
		return nil, errors.New("busy")
	})}

	report, err := New(cfg, opts, zap.NewNop()).ProcessDocument(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, report.Fields, 1)
	assert.Contains(t, report.Fields[0].Error, "after 2 attempts")
	assert.Empty(t, report.Fields[0].Path)
}

func TestDocumentName(t *testing.T) {
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		fields []config.NameField
		format string
		want   string
	}{
		{
			name:   "from fields",
			fields: []config.NameField{{Name: "site", Sheet: "info", Cell: "A1"}},
			format: "SID_{{.site}}",
			want:   "SID_LIM_001",
		},
		{
			name:   "empty value uses field name",
			fields: []config.NameField{{Name: "code", Sheet: "info", Cell: "A9"}},
			format: "SID_{{.code}}",
			want:   "SID_CODE",
		},
		{
			name:   "unknown sheet uses field name",
			fields: []config.NameField{{Name: "code", Sheet: "absent", Cell: "A1"}},
			format: "{{.code}}",
			want:   "CODE",
		},
		{
			name:   "missing key falls back",
			fields: []config.NameField{{Name: "site", Sheet: "info", Cell: "A1"}},
			format: "{{.other}}",
			want:   "SID_GENERADO_20260102_030405",
		},
		{
			name:   "dots only falls back",
			format: "..",
			want:   "SID_GENERADO_20260102_030405",
		},
		{
			name: "no format uses file name",
			want: "site",
		},
	}

	src := sourceWorkbook(t, t.TempDir(), "site.xlsx")
	doc, err := grid.Open(src)
	require.NoError(t, err)
	defer doc.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Naming.Fields = tt.fields
			cfg.Naming.Format = tt.format
			p := New(cfg, Options{Now: func() time.Time { return stamp }}, zap.NewNop())
			assert.Equal(t, tt.want, p.documentName(doc, zap.NewNop()))
		})
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SID 001", "SID_001"},
		{"  a/b  ", "ab"},
		{".staging-x", "staging-x"},
		{"..", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeName(tt.in), tt.in)
	}
}
