package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Paths contains all the paths one report run touches.
// This is the single source of truth for file locations derived from the base path.
type Paths struct {
	BaseDir      string
	RawDir       string
	ProcessedDir string
}

// NewPaths derives the input and output directories from the base path:
//
//	<base>/
//	  ├── RAW_CSV_DATA/        (semicolon separated sensor exports)
//	  └── PROCESSED_CSV_DATA/  (generated workbooks, optional CSV and logs)
func NewPaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base path is required")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path %s: %w", baseDir, err)
	}
	return &Paths{
		BaseDir:      abs,
		RawDir:       filepath.Join(abs, RawDataDirName),
		ProcessedDir: filepath.Join(abs, ProcessedDataDirName),
	}, nil
}

// InputGlob returns the glob matching every raw input file
func (p *Paths) InputGlob() string {
	return filepath.Join(p.RawDir, InputFilePattern)
}

// GetOutputPath returns the path for a file in the processed directory
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.ProcessedDir, filename)
}

// ReportFileName returns the workbook name for a run started at now
func ReportFileName(now time.Time) string {
	return OutputFilePrefix + now.Format(OutputTimeLayout) + OutputFileExtension
}

// EnsureDirectories creates the output directory if it doesn't exist.
// The input directory is never created; a missing one is reported by validation.
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.ProcessedDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", p.ProcessedDir, err)
	}
	slog.Default().Debug("Ensured directory exists",
		slog.String("directory", p.ProcessedDir))
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("raw", p.RawDir),
			slog.String("processed", p.ProcessedDir),
		),
		slog.String("input_glob", p.InputGlob()))
}
