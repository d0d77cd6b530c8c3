// Package config defines the validated configuration of the processor.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/imgcheck"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/naming"
)

// Document types used as keys of Config.Sheets.
const (
	DocSource   = "source"
	DocTemplate = "template"
)

// FieldKind selects how a field is extracted.
type FieldKind string

const (
	KindText  FieldKind = "text"
	KindImage FieldKind = "image"
	KindRange FieldKind = "range"
)

// Origin locates a field in the source document.
type Origin struct {
	Sheet string `yaml:"sheet" toml:"sheet"`
	Cell  string `yaml:"cell,omitempty" toml:"cell,omitempty"`
	Range string `yaml:"range,omitempty" toml:"range,omitempty"`
}

// Destination locates a field in the output document. Sizes are in
// centimetres; zero keeps the natural size along that axis.
type Destination struct {
	Sheet    string   `yaml:"sheet" toml:"sheet"`
	Cells    []string `yaml:"cells" toml:"cells"`
	WidthCM  float64  `yaml:"width_cm,omitempty" toml:"width_cm,omitempty"`
	HeightCM float64  `yaml:"height_cm,omitempty" toml:"height_cm,omitempty"`
}

// FieldDescriptor copies one value from the source into the template.
type FieldDescriptor struct {
	Name        string      `yaml:"name" toml:"name"`
	Kind        FieldKind   `yaml:"kind" toml:"kind"`
	Origin      Origin      `yaml:"origin" toml:"origin"`
	Destination Destination `yaml:"destination" toml:"destination"`
}

// NameField is a source cell used to build the output document name.
type NameField struct {
	Name  string `yaml:"name" toml:"name"`
	Sheet string `yaml:"sheet" toml:"sheet"`
	Cell  string `yaml:"cell" toml:"cell"`
}

// NamingConfig builds output document names.
type NamingConfig struct {
	Fields []NameField `yaml:"fields" toml:"fields"`
	// Format is a text/template over the sanitized field values.
	Format string `yaml:"format" toml:"format"`
	// Fallback prefixes the timestamped name used when Format fails.
	Fallback string `yaml:"fallback" toml:"fallback"`
	// Template is the path of the output template workbook.
	Template string `yaml:"template" toml:"template"`
}

// GroupDestination places correlated images in the template. Cells maps a
// raw group value to one cell per sub-group, in Subs order.
type GroupDestination struct {
	Sheet    string              `yaml:"sheet" toml:"sheet"`
	Cells    map[string][]string `yaml:"cells" toml:"cells"`
	WidthCM  float64             `yaml:"width_cm,omitempty" toml:"width_cm,omitempty"`
	HeightCM float64             `yaml:"height_cm,omitempty" toml:"height_cm,omitempty"`
}

// CorrelationConfig drives phrase correlation over groups and sub-groups.
// Phrase, GroupName and SubName are text/templates receiving .Group and .Sub.
type CorrelationConfig struct {
	Sheet       string           `yaml:"sheet" toml:"sheet"`
	Phrase      string           `yaml:"phrase" toml:"phrase"`
	GroupName   string           `yaml:"group_name" toml:"group_name"`
	SubName     string           `yaml:"sub_name" toml:"sub_name"`
	Groups      []string         `yaml:"groups" toml:"groups"`
	Subs        []string         `yaml:"subs" toml:"subs"`
	Offset      int              `yaml:"offset" toml:"offset"`
	Ext         string           `yaml:"ext" toml:"ext"`
	NoTags      string           `yaml:"no_tags" toml:"no_tags"`
	Destination GroupDestination `yaml:"destination" toml:"destination"`
}

// PlaceholderConfig describes marker substitution in the template.
type PlaceholderConfig struct {
	// Marker is replaced by the group tag string.
	Marker string `yaml:"marker" toml:"marker"`
	// GroupPattern matches text naming a group; its first submatch is the raw
	// group value.
	GroupPattern string `yaml:"group_pattern" toml:"group_pattern"`
	// Identifiers maps literal markers to text field names.
	Identifiers map[string]string `yaml:"identifiers" toml:"identifiers"`
}

// OutputConfig holds output roots.
type OutputConfig struct {
	Images    string `yaml:"images" toml:"images"`
	Documents string `yaml:"documents" toml:"documents"`
}

// RasterConfig is the range rendering retry policy.
type RasterConfig struct {
	Attempts int    `yaml:"attempts" toml:"attempts"`
	Delay    string `yaml:"delay" toml:"delay"`
}

// Config is the root configuration.
type Config struct {
	// Sheets maps a document type to logical sheet names and 0-based indices.
	Sheets       map[string]map[string]int `yaml:"sheets" toml:"sheets"`
	Fields       []FieldDescriptor         `yaml:"fields" toml:"fields"`
	Naming       NamingConfig              `yaml:"naming" toml:"naming"`
	Correlation  CorrelationConfig         `yaml:"correlation" toml:"correlation"`
	Placeholders PlaceholderConfig         `yaml:"placeholders" toml:"placeholders"`
	Output       OutputConfig              `yaml:"output" toml:"output"`
	Raster       RasterConfig              `yaml:"raster" toml:"raster"`
	Logging      LoggingConfig             `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns the reference configuration. Sheets, fields and the
// template path have no defaults.
func DefaultConfig() *Config {
	return &Config{
		Sheets: map[string]map[string]int{},
		Naming: NamingConfig{
			Fallback: "SID_GENERADO",
		},
		Correlation: CorrelationConfig{
			Phrase:    "foto general de la antena {{.Group}} sector {{.Sub}}",
			GroupName: "Antena_{{.Group}}",
			SubName:   "Sector_{{.Sub}}",
			Groups:    []string{"1", "2", "3", "4"},
			Subs:      []string{"a", "b", "c"},
			Offset:    12,
			Ext:       "png",
			NoTags:    "Sin tecnologías",
		},
		Placeholders: PlaceholderConfig{
			Marker:       "TECH",
			GroupPattern: `8\.(\d+)`,
		},
		Output: OutputConfig{
			Images:    "images",
			Documents: "output",
		},
		Raster: RasterConfig{
			Attempts: 3,
			Delay:    "2s",
		},
		Logging: LoggingConfig{
			Console: LoggerConfig{Level: "normal"},
			File:    LoggerConfig{Level: "none", Mode: "append"},
		},
	}
}

// Load reads the configuration at path over DefaultConfig. Files ending in
// .toml are decoded as TOML, anything else as YAML. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte, isTOML bool) (*Config, error) {
	cfg := DefaultConfig()

	if isTOML {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks hard-required keys. Field descriptors pointing at unknown
// sheets are not rejected here; they surface as FieldUnavailableError when
// resolved.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Naming.Template == "" {
		add("naming.template is required")
	}
	if c.Output.Images == "" {
		add("output.images is required")
	}
	if c.Output.Documents == "" {
		add("output.documents is required")
	}

	if c.Correlation.Phrase != "" {
		if _, err := c.SheetIndex(DocSource, c.Correlation.Sheet); err != nil {
			add("correlation.sheet: %v", err)
		}
		if len(c.Correlation.Groups) == 0 || len(c.Correlation.Subs) == 0 {
			add("correlation.groups and correlation.subs must not be empty")
		}
		if c.Correlation.Offset < 1 {
			add("correlation.offset must be positive, got %d", c.Correlation.Offset)
		}
		if c.Correlation.Ext == "" {
			add("correlation.ext is required")
		}
		for _, tmpl := range [][2]string{
			{"phrase", c.Correlation.Phrase},
			{"group_name", c.Correlation.GroupName},
			{"sub_name", c.Correlation.SubName},
		} {
			if err := naming.Parse(tmpl[0], tmpl[1]); err != nil {
				add("correlation.%s: %v", tmpl[0], err)
			}
		}
	}
	if c.Correlation.Ext != "" {
		if err := imgcheck.CheckFormat(c.Correlation.Ext); err != nil {
			add("correlation.ext: %v", err)
		}
	}

	if c.Placeholders.GroupPattern != "" {
		re, err := regexp.Compile(c.Placeholders.GroupPattern)
		if err != nil {
			add("placeholders.group_pattern: %v", err)
		} else if re.NumSubexp() < 1 {
			add("placeholders.group_pattern needs a capture group")
		}
	}

	if c.Raster.Attempts < 1 {
		add("raster.attempts must be positive, got %d", c.Raster.Attempts)
	}
	if _, err := time.ParseDuration(c.Raster.Delay); err != nil {
		add("raster.delay: %v", err)
	}

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			add("fields[%d]: name is required", i)
		} else if seen[f.Name] {
			add("fields[%d]: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case KindText, KindImage:
		case KindRange:
			if f.Origin.Range == "" {
				add("fields[%d] %q: range fields need origin.range", i, f.Name)
			}
		default:
			add("fields[%d] %q: unknown kind %q", i, f.Name, f.Kind)
		}
	}

	if err := c.Logging.validate(); err != nil {
		add("logging: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RenderDelay returns the parsed raster retry delay.
func (c *Config) RenderDelay() time.Duration {
	d, _ := time.ParseDuration(c.Raster.Delay)
	return d
}

// GroupPattern returns the compiled group pattern, nil when none is set.
func (c *Config) GroupPattern() *regexp.Regexp {
	if c.Placeholders.GroupPattern == "" {
		return nil
	}
	return regexp.MustCompile(c.Placeholders.GroupPattern)
}

// SheetIndex resolves a logical sheet name for a document type.
func (c *Config) SheetIndex(docType, name string) (int, error) {
	idx, ok := c.Sheets[docType][name]
	if !ok {
		return 0, &FieldUnavailableError{DocType: docType, Sheet: name, Err: ErrUnknownSheet}
	}
	return idx, nil
}
