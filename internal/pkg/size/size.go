package size

import units "github.com/docker/go-units"

var decimalUnits = []string{"B", "kB", "MB", "GB", "TB", "PB"}

// Format renders n in decimal units with three significant digits, e.g. "4.2 MB".
func Format(n int64) string {
	return units.CustomSize("%.3g %s", float64(n), 1000.0, decimalUnits)
}
