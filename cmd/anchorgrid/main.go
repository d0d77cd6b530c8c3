// Package main provides the CLI entry point for anchorgrid.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/correlate"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/tags"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/template"
)

var (
	configPath string
	reportPath string
	logLevel   string
	imagesOnly bool
	tagsExt    string
	offset     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "anchorgrid",
		Short: "Correlate phrases with anchored images in Excel workbooks",
		Long: `anchorgrid finds the pictures placed above captions in xlsx workbooks,
stores them with tag-bearing names and fills an output template.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Console log level: none, normal, debug")

	runCmd := &cobra.Command{
		Use:   "run <dir|file>",
		Short: "Process one workbook or every workbook in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	runCmd.Flags().StringVarP(&reportPath, "report", "r", "", "Batch report file path (default: stdout)")
	runCmd.Flags().BoolVar(&imagesOnly, "images-only", false, "Extract images and tags without writing documents")

	tagsCmd := &cobra.Command{
		Use:   "tags <folder> <group> <sub...>",
		Short: "Aggregate the tags of persisted images",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runTags,
	}
	tagsCmd.Flags().StringVar(&tagsExt, "ext", "png", "Image extension")

	locateCmd := &cobra.Command{
		Use:   "locate <file> <sheet-index> <phrase>",
		Short: "Show the cell, search window and image correlated with a phrase",
		Args:  cobra.ExactArgs(3),
		RunE:  runLocate,
	}
	locateCmd.Flags().IntVar(&offset, "offset", correlate.DefaultOffset, "Rows searched above the matched cell")

	textBoxesCmd := &cobra.Command{
		Use:   "textboxes <file>",
		Short: "List the text boxes of every sheet, e.g. to check template markers",
		Args:  cobra.ExactArgs(1),
		RunE:  runTextBoxes,
	}

	rootCmd.AddCommand(runCmd, tagsCmd, locateCmd, textBoxesCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, errors.New("a configuration file is required (--config)")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Console.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := cfg.Logging.Prepare()
	if err != nil {
		return fmt.Errorf("unable to prepare logging: %w", err)
	}
	defer func() { _ = log.Sync() }()

	opts := anchorgrid.DefaultOptions()
	opts.ImagesOnly = imagesOnly

	batch, err := anchorgrid.New(cfg, opts, log).ProcessBatch(cmd.Context(), args[0])
	if batch != nil {
		if werr := writeReport(batch); werr != nil {
			log.Error("Unable to write report", zap.Error(werr))
		}
	}
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", batch.Failed, len(batch.Documents))
	}
	return nil
}

func writeReport(batch *anchorgrid.BatchReport) error {
	if reportPath == "" {
		return batch.WriteJSON(os.Stdout)
	}
	f, err := os.Create(reportPath)
	if err != nil {
		return err
	}
	if err := batch.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runTags(cmd *cobra.Command, args []string) error {
	summary, err := tags.Aggregate(args[0], args[1], args[2:], tagsExt)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary.Title)
	return nil
}

type locateResult struct {
	Cell       string                `json:"cell"`
	Value      string                `json:"value"`
	Annotation string                `json:"annotation,omitempty"`
	Window     models.SearchWindow   `json:"window"`
	Image      *models.AnchoredImage `json:"image,omitempty"`
}

func runLocate(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid sheet index %q: %w", args[1], err)
	}

	doc, err := grid.Open(args[0])
	if err != nil {
		return err
	}
	defer doc.Close()

	if n := doc.SheetCount(); index < 0 || index >= n {
		return fmt.Errorf("sheet index %d out of range, %s has %d sheets", index, args[0], n)
	}
	sheet, err := doc.SheetAt(index)
	if err != nil {
		return err
	}
	m, err := correlate.Locate(sheet.Grid, args[2])
	if err != nil {
		return fmt.Errorf("%q: %w", args[2], err)
	}

	res := locateResult{
		Cell:       grid.CellName(m.Coord),
		Value:      m.Value,
		Annotation: m.Annotation,
		Window:     correlate.ResolveWindow(sheet.Merged, m.Coord, offset),
	}
	if img, err := correlate.Correlate(res.Window, sheet.Images); err == nil {
		res.Image = &img
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runTextBoxes(cmd *cobra.Command, args []string) error {
	boxes, err := template.TextBoxes(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(boxes)
}
