package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sheets:
  source:
    info: 0
    towers: 1
  template:
    report: 0
fields:
  - name: site
    kind: text
    origin: {sheet: info, cell: H8}
    destination: {sheet: report, cells: [C3, F3]}
  - name: plan
    kind: range
    origin: {sheet: info, range: "A1:D10"}
    destination: {sheet: report, cells: [B10], width_cm: 12}
naming:
  fields:
    - {name: site, sheet: info, cell: H8}
  format: "SID_{{.site}}"
  template: template.xlsx
correlation:
  sheet: towers
  groups: ["1", "2"]
  destination:
    sheet: report
    cells:
      "1": [B20, C20, D20]
placeholders:
  identifiers:
    SITE_ID: site
output:
  images: out/images
  documents: out/docs
`

const sampleTOML = `
[sheets.source]
info = 0
towers = 1

[naming]
template = "template.xlsx"

[correlation]
sheet = "towers"
subs = ["x", "y"]
offset = 6

[raster]
delay = "250ms"

[[fields]]
name = "photo"
kind = "image"
[fields.origin]
sheet = "info"
cell = "B4"
[fields.destination]
sheet = "report"
cells = ["A1"]
height_cm = 4.5
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Sheets[DocSource]["towers"])
	require.Len(t, cfg.Fields, 2)
	assert.Equal(t, KindRange, cfg.Fields[1].Kind)
	assert.Equal(t, []string{"C3", "F3"}, cfg.Fields[0].Destination.Cells)
	assert.Equal(t, 12.0, cfg.Fields[1].Destination.WidthCM)

	// overridden
	assert.Equal(t, []string{"1", "2"}, cfg.Correlation.Groups)
	assert.Equal(t, []string{"B20", "C20", "D20"}, cfg.Correlation.Destination.Cells["1"])
	assert.Equal(t, "site", cfg.Placeholders.Identifiers["SITE_ID"])
	// defaults
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Correlation.Subs)
	assert.Equal(t, 12, cfg.Correlation.Offset)
	assert.Equal(t, "Sin tecnologías", cfg.Correlation.NoTags)
	assert.Equal(t, 2*time.Second, cfg.RenderDelay())
	assert.Equal(t, "TECH", cfg.Placeholders.Marker)
}

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.toml", sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, cfg.Correlation.Subs)
	assert.Equal(t, 6, cfg.Correlation.Offset)
	assert.Equal(t, 250*time.Millisecond, cfg.RenderDelay())
	require.Len(t, cfg.Fields, 1)
	assert.Equal(t, KindImage, cfg.Fields[0].Kind)
	assert.Equal(t, "B4", cfg.Fields[0].Origin.Cell)
	assert.Equal(t, 4.5, cfg.Fields[0].Destination.HeightCM)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", sampleYAML+"\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Sheets[DocSource] = map[string]int{"towers": 0}
		cfg.Correlation.Sheet = "towers"
		cfg.Naming.Template = "t.xlsx"
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no template", func(c *Config) { c.Naming.Template = "" }, "naming.template"},
		{"no images root", func(c *Config) { c.Output.Images = "" }, "output.images"},
		{"unknown correlation sheet", func(c *Config) { c.Correlation.Sheet = "nope" }, "correlation.sheet"},
		{"correlation disabled", func(c *Config) { c.Correlation.Phrase = ""; c.Correlation.Sheet = "nope" }, ""},
		{"zero offset", func(c *Config) { c.Correlation.Offset = 0 }, "correlation.offset"},
		{"no subs", func(c *Config) { c.Correlation.Subs = nil }, "correlation.groups"},
		{"unencodable ext", func(c *Config) { c.Correlation.Ext = "webp" }, "correlation.ext"},
		{"jpeg ext", func(c *Config) { c.Correlation.Ext = ".jpeg" }, ""},
		{"bad phrase template", func(c *Config) { c.Correlation.Phrase = "antena {{.Group" }, "correlation.phrase"},
		{"bad sub name template", func(c *Config) { c.Correlation.SubName = "{{end}}" }, "correlation.sub_name"},
		{"pattern without group", func(c *Config) { c.Placeholders.GroupPattern = `8\.\d+` }, "capture group"},
		{"bad pattern", func(c *Config) { c.Placeholders.GroupPattern = `(` }, "group_pattern"},
		{"bad delay", func(c *Config) { c.Raster.Delay = "soon" }, "raster.delay"},
		{"bad kind", func(c *Config) { c.Fields = []FieldDescriptor{{Name: "x", Kind: "video"}} }, "unknown kind"},
		{"range without range", func(c *Config) { c.Fields = []FieldDescriptor{{Name: "x", Kind: KindRange}} }, "origin.range"},
		{"duplicate field", func(c *Config) {
			c.Fields = []FieldDescriptor{{Name: "x", Kind: KindText}, {Name: "x", Kind: KindText}}
		}, "duplicate"},
		{"file log without destination", func(c *Config) { c.Logging.File.Level = LevelDebug }, "destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSheetIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sheets[DocTemplate] = map[string]int{"report": 2}

	idx, err := cfg.SheetIndex(DocTemplate, "report")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = cfg.SheetIndex(DocSource, "report")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldUnavailable)
	assert.ErrorIs(t, err, ErrUnknownSheet)

	var fe *FieldUnavailableError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "report", fe.Sheet)
	assert.Equal(t, DocSource, fe.DocType)
}

func TestUnavailable(t *testing.T) {
	_, err := DefaultConfig().SheetIndex(DocSource, "info")
	err = Unavailable("site", err)

	var fe *FieldUnavailableError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "site", fe.Field)
	assert.True(t, strings.HasPrefix(err.Error(), `field unavailable "site" (source sheet "info")`))

	err = Unavailable("photo", errors.New("boom"))
	assert.ErrorIs(t, err, ErrFieldUnavailable)
	assert.Equal(t, `field unavailable "photo": boom`, err.Error())
}

func TestPrepareFileLogger(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "run.log")
	conf := LoggingConfig{
		Console: LoggerConfig{Level: LevelNone},
		File:    LoggerConfig{Level: LevelNormal, Destination: dest, Mode: "overwrite"},
	}
	require.NoError(t, conf.validate())

	log, err := conf.Prepare()
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("document processed")
	_ = log.Sync()

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "document processed")
	assert.NotContains(t, string(data), "hidden")
}
