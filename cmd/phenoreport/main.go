package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"phenocli/internal/app"
	"phenocli/internal/config"
	"phenocli/pkg/contracts"
)

type rootOptions struct {
	basePath   string
	configFile string
	logLevel   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Build the phenotyping summary workbook from raw sensor exports",
		Long: `phenoreport reads every *.csv export in <path>/RAW_CSV_DATA, averages the scans
per plant and day, computes population statistics and writes
<path>/PROCESSED_CSV_DATA/output_<timestamp>.xlsx.`,
		Version:       contracts.GetFullVersionString(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, stdout, stderr)
		},
	}

	cmd.Flags().StringVarP(&opts.basePath, "path", "p", "", "base directory containing RAW_CSV_DATA (required)")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "optional YAML configuration file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.MarkFlagRequired("path")

	return cmd
}

func runReport(ctx context.Context, opts *rootOptions, stdout, stderr io.Writer) error {
	switch opts.logLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", opts.logLevel)
	}

	application, err := app.NewApplication(app.Options{
		BasePath:   opts.basePath,
		ConfigFile: opts.configFile,
		LogLevel:   opts.logLevel,
		Console:    stderr,
	})
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	output, err := application.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, filepath.Base(output))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
