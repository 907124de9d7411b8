// Package files discovers the raw sensor exports of a report run.
//
// Discovery lists files relative to a base path. Results are always sorted by
// file name so ingestion order, and therefore the report, is deterministic.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.BaseDir)
//	found, err := discovery.FindFilesByPattern(config.RawDataDirName, "*.csv")
//	if err != nil {
//		return err
//	}
//	table, report, err := parser.Ingest(ctx, files.Paths(found))
package files
