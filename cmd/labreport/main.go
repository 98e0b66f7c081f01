// Package main is an offline command line front end for the lab report pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/labpanel-mcp-server/internal/app"
	"github.com/labpanel-mcp-server/internal/config"
	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/logging"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/service"
)

func main() {
	root := &cli.Command{
		Name:  "labreport",
		Usage: "Analyze lab reports from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("LABPANEL_LOG_LEVEL"),
				Usage:   "log level written to stderr",
			},
		},
		Commands: []*cli.Command{
			cmdAnalyze,
			cmdClassify,
			cmdExtract,
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "labreport: %v\n", err)
		os.Exit(1)
	}
}

var cmdAnalyze = &cli.Command{
	Name:      "analyze",
	Usage:     "Run the full pipeline and print the analysis as JSON",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "report-type", Usage: "CBC, Liver Function, Diabetes or Thyroid; detected when omitted"},
		&cli.StringFlag{Name: "name", Usage: "patient name override"},
		&cli.IntFlag{Name: "age", Value: -1, Usage: "patient age override"},
		&cli.StringFlag{Name: "gender", Usage: "patient gender override"},
		&cli.BoolFlag{Name: "persist", Usage: "store the analysis in the data directory"},
		&cli.BoolFlag{Name: "export", Usage: "also write the JSON to the exports directory"},
	},
	Action: analyze,
}

var cmdClassify = &cli.Command{
	Name:      "classify",
	Usage:     "Print the detected report type",
	ArgsUsage: "<file>",
	Action:    classify,
}

var cmdExtract = &cli.Command{
	Name:      "extract",
	Usage:     "Print the extracted and cleaned text",
	ArgsUsage: "<file>",
	Action:    extract,
}

func readInput(cmd *cli.Command) (string, []byte, string, error) {
	path := cmd.Args().First()
	if path == "" {
		return "", nil, "", fmt.Errorf("a report file is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, "", fmt.Errorf("cannot read report file: %w", err)
	}
	return path, content, ocr.MimeTypeForFile(path), nil
}

func extractText(ctx context.Context, cmd *cli.Command) (string, string, error) {
	path, content, mimeType, err := readInput(cmd)
	if err != nil {
		return "", "", err
	}
	lite := config.LoadLiteConfig()
	extractor := ocr.NewExtractor(logging.NewStderr(cmd.String("log-level"), logging.FormatText), lite.OCRConfig())
	result, err := extractor.Extract(ctx, content, mimeType)
	if err != nil {
		return "", "", err
	}
	if !result.Success {
		return "", "", fmt.Errorf("%w: %s", service.ErrExtractionFailed, result.Error)
	}
	return path, result.Text, nil
}

func classify(ctx context.Context, cmd *cli.Command) error {
	path, text, err := extractText(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Println(service.ClassifyReportType(filepath.Base(path), text))
	return nil
}

func extract(ctx context.Context, cmd *cli.Command) error {
	_, text, err := extractText(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func analyze(ctx context.Context, cmd *cli.Command) error {
	path, content, mimeType, err := readInput(cmd)
	if err != nil {
		return err
	}
	params := service.AnalyzeParams{
		FileName: filepath.Base(path),
		MimeType: mimeType,
		Content:  content,
		Persist:  cmd.Bool("persist"),
	}
	if raw := cmd.String("report-type"); raw != "" {
		if params.ReportType, err = domain.ParseReportType(raw); err != nil {
			return err
		}
	}
	if params.Patient, err = patientOverride(cmd); err != nil {
		return err
	}

	lite := config.LoadLiteConfig()
	logger := logging.NewStderr(cmd.String("log-level"), logging.FormatText)
	components, err := app.Build(ctx, &domain.Config{
		Storage: domain.StorageConfig{Driver: app.DriverSQLite, DataDir: lite.DataDir},
		Cache:   lite.CacheConfig(),
		OCR:     lite.OCRConfig(),
		Parser:  domain.DefaultParserConfig(),
	}, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	result, err := components.Analyzer.Analyze(ctx, params)
	if err != nil {
		return err
	}

	out := []io.Writer{os.Stdout}
	if cmd.Bool("export") {
		if err := lite.EnsureDataDir(); err != nil {
			return err
		}
		stored := ocr.StoredFileName(params.FileName, time.Now())
		name := strings.TrimSuffix(stored, filepath.Ext(stored)) + ".json"
		f, err := os.Create(filepath.Join(lite.ExportDir(), name))
		if err != nil {
			return fmt.Errorf("cannot create export file: %w", err)
		}
		defer f.Close()
		out = append(out, f)
	}

	enc := json.NewEncoder(io.MultiWriter(out...))
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func patientOverride(cmd *cli.Command) (*domain.PatientInfo, error) {
	var patient domain.PatientInfo
	if name := cmd.String("name"); name != "" {
		patient.Name = &name
	}
	if age := int(cmd.Int("age")); age >= 0 {
		patient.Age = &age
	}
	if raw := cmd.String("gender"); raw != "" {
		g, ok := domain.ParseGender(raw)
		if !ok {
			return nil, fmt.Errorf("%q: %w", raw, domain.ErrInvalidGender)
		}
		patient.Gender = &g
	}
	if patient.IsEmpty() {
		return nil, nil
	}
	return &patient, nil
}
