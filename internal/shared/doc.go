// Package shared holds helpers used across phenocli packages.
//
// The testutil subpackage provides:
//
//	- Sensor export fixtures (headers, scans, CSV writers)
//	- A buffered slog handler with log assertions
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    testutil.WriteSensorCSV(t, dir, "scans.csv", testutil.StandardHeader, scans)
//	    ...
//	    testutil.AssertLogContains(t, handler, slog.LevelInfo, "ingested raw records")
//	}
package shared
