// Package sanitize neutralizes spreadsheet formula injection in tabular
// cell values. A cell whose first character is a formula trigger would be
// executed by spreadsheet software when the exported file is opened there;
// prefixing a single quote forces the cell to be read as text.
package sanitize

// Formula trigger characters recognized by common spreadsheet software.
const triggers = "=+-@|\t\r"

func isTrigger(b byte) bool {
	for i := 0; i < len(triggers); i++ {
		if triggers[i] == b {
			return true
		}
	}
	return false
}

// Cell rewrites raw so it can never execute as a spreadsheet formula.
// Idempotent: a value that already carries the neutralizing quote is
// returned unchanged. Pure; never fails.
func Cell(raw string) string {
	if raw == "" {
		return raw
	}
	if isTrigger(raw[0]) {
		return "'" + raw
	}
	if raw[0] == '\'' && len(raw) > 1 && isTrigger(raw[1]) {
		return raw
	}
	return raw
}

// Row sanitizes every value in place and returns the same slice.
func Row(values []string) []string {
	for i, v := range values {
		values[i] = Cell(v)
	}
	return values
}
