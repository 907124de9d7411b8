package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// StandardHeader is a sensor export header for the standard VIS schema
var StandardHeader = []string{
	"Snapshot ID Tag", "ROI Label", "Snapshot Time Stamp", "Row No", "Writer Label",
	"Area", "Convex Hull Area", "Caliper Length", "Compactness",
	"Green px", "Yellow px",
	"NIR water low", "NIR water med", "NIR water high",
	"Fluo signal no", "Fluo signal low", "Fluo signal med", "Fluo signal high",
}

// ColorClassHeader is a sensor export header carrying generic color class columns
var ColorClassHeader = []string{
	"Snapshot ID Tag", "ROI Label", "Snapshot Time Stamp", "Row No", "Writer Label",
	"Area", "Convex Hull Area", "Caliper Length", "Compactness",
	"ColorClass_01", "ColorClass_02", "ColorClass_03",
}

// Scan is one export row keyed by header name; absent keys are written empty
type Scan map[string]string

// SensorCSV renders scans as semicolon separated text with a header line
func SensorCSV(header []string, scans []Scan) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ";"))
	b.WriteString("\n")
	for _, s := range scans {
		cells := make([]string, len(header))
		for i, h := range header {
			cells[i] = s[h]
		}
		b.WriteString(strings.Join(cells, ";"))
		b.WriteString("\n")
	}
	return b.String()
}

// WriteSensorCSV writes scans to dir/name and returns the path
func WriteSensorCSV(t *testing.T, dir, name string, header []string, scans []Scan) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(SensorCSV(header, scans)), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// VisScan returns a VIS scan with the four base shape measurements
func VisScan(tag, label, timestamp, area string) Scan {
	return Scan{
		"Snapshot ID Tag":     tag,
		"ROI Label":           label,
		"Snapshot Time Stamp": timestamp,
		"Row No":              "1",
		"Writer Label":        "vis_side",
		"Area":                area,
		"Convex Hull Area":    area,
		"Caliper Length":      "10",
		"Compactness":         "0.5",
	}
}

// FamilyScan returns a non-VIS scan; writer is the raw label such as "nir_top"
func FamilyScan(tag, label, timestamp, writer string, values map[string]string) Scan {
	s := Scan{
		"Snapshot ID Tag":     tag,
		"ROI Label":           label,
		"Snapshot Time Stamp": timestamp,
		"Row No":              "1",
		"Writer Label":        writer,
		"Area":                "1",
	}
	for k, v := range values {
		s[k] = v
	}
	return s
}
