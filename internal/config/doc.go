// Package config provides centralized configuration management for phenoreport.
// It handles loading configuration from multiple sources, validation, and the
// derivation of every input and output path from the base path.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file passed with --config
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PHENO_* for namespacing:
//
//	PHENO_LOGGING_LEVEL=debug
//	PHENO_REPORT_DELIMITER=;
//	PHENO_REPORT_INCLUDE_SEM=false
//	PHENO_REPORT_LABEL_POLICY=skip
//	PHENO_TELEMETRY_METRICS_TEXTFILE=/var/lib/node_exporter/phenoreport.prom
//
// # Path Management
//
// Paths are derived from the base path given on the command line:
//
//	paths, err := config.NewPaths("/data/trial-7")
//	pattern := paths.InputGlob()                    // <base>/RAW_CSV_DATA/*.csv
//	out := paths.GetOutputPath(config.ReportFileName(time.Now()))
//
// # Validation
//
// All configuration is validated at load time with struct tags, so an invalid
// delimiter, label policy or log level fails before any input is read.
package config
