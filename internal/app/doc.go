// Package app wires configuration, logging, telemetry and the report pipeline
// for a single run of phenoreport.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, the optional YAML file and PHENO_* env
//	2. Resolve the RAW_CSV_DATA and PROCESSED_CSV_DATA directories
//	3. Initialize the JSON logger and OpenTelemetry providers
//	4. Validate the input and output directories
//	5. Register the report steps and execute them
//	6. Write the metrics textfile when configured
//
// # Usage
//
//	application, err := app.NewApplication(app.Options{BasePath: path})
//	if err != nil {
//	    return err
//	}
//	defer application.Close(ctx)
//	output, err := application.Run(ctx)
//
// # Error Handling
//
// All errors are returned to the caller. The app does not call os.Exit(),
// allowing the main function to control the exit code.
package app
