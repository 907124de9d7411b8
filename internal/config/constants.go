package config

import "phenocli/pkg/contracts"

// Application constants - all hardcoded values for the phenotyping report builder
const (
	// Application Info
	AppName    = "phenoreport"
	AppVersion = contracts.Version

	// Directory layout below the base path given on the command line
	RawDataDirName       = "RAW_CSV_DATA"
	ProcessedDataDirName = "PROCESSED_CSV_DATA"
	InputFilePattern     = "*.csv"

	// Output naming
	OutputFilePrefix    = "output_"
	OutputFileExtension = ".xlsx"
	OutputTimeLayout    = "20060102150405"
	RawDataCSVName      = "raw_data.csv"
	StatisticsCSVName   = "statistics.csv"
	LogFileName         = "phenoreport.log"

	// Input format
	DefaultDelimiter = ";"
	DateLayout       = "2006-01-02"

	// Label policies for structural labels that do not follow <row>0<plant>
	LabelPolicyStrict = "strict"
	LabelPolicySkip   = "skip"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Concurrency used while parsing input files
	DefaultParseWorkers = 4

	// Environment variable prefix for envconfig
	EnvPrefix = "PHENO"
)
