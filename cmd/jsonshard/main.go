package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shardline/jsonshard/internal/convert"
	"github.com/shardline/jsonshard/pkg/formats/columnar"
	"github.com/shardline/jsonshard/pkg/logger"
)

var version = "0.1.0"

// fileConfig carries defaults loadable from a YAML file; explicit command
// line flags win over file values.
type fileConfig struct {
	BatchSize   int    `yaml:"batch_size"`
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
	LogLevel    string `yaml:"log_level"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:   "jsonshard",
		Short: "jsonshard - NDJSON to columnar shard converter",
		Long: `jsonshard reads a newline-delimited JSON file, groups records into
fixed-size batches, and writes each batch out as its own columnar shard
file (parquet by default).`,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newFormatsCmd())
	root.AddCommand(newConvertCmd())
	root.AddCommand(newInspectCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jsonshard v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported output formats",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Supported output formats:")
			for _, f := range columnar.Formats() {
				fmt.Printf("  - %-8s (%s)\n", f, f.Extension())
			}
		},
	}
}

func newConvertCmd() *cobra.Command {
	var (
		inputFile    string
		outputPrefix string
		batchSize    int
		format       string
		compress     string
		configFile   string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an NDJSON file into columnar shards",
		Long: `Convert an NDJSON file into fixed-size columnar shard files named
{output}-{n}.{ext}, with n starting at 0. Each shard's schema is inferred
from its own batch, so heterogeneous records are tolerated.

Example:
  jsonshard convert -i events.ndjson -o out/events -b 100000 --format parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				cfg, err := loadFileConfig(configFile)
				if err != nil {
					return err
				}
				if cfg.BatchSize > 0 && !cmd.Flags().Changed("batch-size") {
					batchSize = cfg.BatchSize
				}
				if cfg.Format != "" && !cmd.Flags().Changed("format") {
					format = cfg.Format
				}
				if cfg.Compression != "" && !cmd.Flags().Changed("compression") {
					compress = cfg.Compression
				}
				if cfg.LogLevel != "" && !cmd.Flags().Changed("log-level") {
					logLevel = cfg.LogLevel
				}
			}

			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
				return err
			}
			log := logger.With(zap.String("component", "jsonshard-cli"))

			outFormat, err := columnar.ParseFormat(format)
			if err != nil {
				return err
			}

			converter, err := convert.New(convert.Options{
				InputPath:    inputFile,
				OutputPrefix: outputPrefix,
				BatchSize:    batchSize,
				Format:       outFormat,
				Compression:  compress,
			}, log)
			if err != nil {
				return err
			}

			log.Info("starting conversion",
				zap.String("input", inputFile),
				zap.String("output_prefix", outputPrefix),
				zap.Int("batch_size", batchSize),
				zap.String("format", format))

			summary, err := converter.Run(cmd.Context())
			if err != nil {
				return err
			}

			perSecond := 0.0
			if summary.Duration.Seconds() > 0 {
				perSecond = float64(summary.Records) / summary.Duration.Seconds()
			}
			snap, err := converter.Metrics().Snapshot()
			if err != nil {
				log.Warn("failed to gather run metrics", zap.Error(err))
			}
			log.Info("conversion completed",
				zap.Int("records", summary.Records),
				zap.Int("shards", summary.Shards),
				zap.Int64("bytes_written", snap.BytesWritten),
				zap.Duration("duration", summary.Duration),
				zap.Duration("flush_time", snap.FlushTotal),
				zap.Float64("records_per_second", perSecond))

			_ = logger.Sync()
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input NDJSON file (required)")
	cmd.Flags().StringVarP(&outputPrefix, "output", "o", "", "Output path prefix for shard files (required)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", convert.DefaultBatchSize, "Number of records per shard")
	cmd.Flags().StringVar(&format, "format", string(columnar.Parquet), "Output format (parquet, arrow, avro, csv, json)")
	cmd.Flags().StringVar(&compress, "compression", "", "Output compression codec, format dependent")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML defaults file (optional)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print schema and row count of shard files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := inspectFile(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inspectFile(path string) error {
	format, err := columnar.FormatForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, err := columnar.NewReader(f, format)
	if err != nil {
		return err
	}
	defer reader.Close()

	records, err := reader.ReadRecords()
	if err != nil {
		return err
	}
	shardSchema, err := reader.Schema()
	if err != nil {
		return err
	}

	fmt.Printf("%s: format=%s rows=%d columns=%d\n", path, format, len(records), len(shardSchema.Fields))
	for _, field := range shardSchema.Fields {
		fmt.Printf("  %-24s %-8s nullable=%v\n", field.Name, field.Type, field.Nullable)
	}
	return nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
