// Package operations runs the report pipeline as an ordered list of steps.
//
// Core Components:
//
// Manager: executes registered steps sequentially against one OperationState.
// The first failing step aborts the run, and every later step is marked skipped.
// Each step gets its own span and a duration sample.
//
// Step: a single unit of work. The report steps are ingest, classify, reshape,
// aggregate, statistics, pivot and export; NewReportStages builds them in that
// order from the application configuration.
//
// State: OperationState carries the per-step status and the artifacts each step
// hands to the next (raw table, classification, canonical records, aggregated
// and statistics tables, pivots, output path).
//
// Example usage:
//
//	manager := operations.NewManager(logger, providers.Metrics)
//	for _, step := range operations.NewReportStages(logger, pipelineConfig) {
//		if err := manager.RegisterStep(step); err != nil {
//			return err
//		}
//	}
//	state := operations.NewOperationState(runID)
//	if err := manager.Execute(ctx, state); err != nil {
//		return err
//	}
//	fmt.Println(filepath.Base(state.OutputPath))
package operations
