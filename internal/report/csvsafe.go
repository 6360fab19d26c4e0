package report

import "strings"

// EscapeCSVCell neutralizes spreadsheet formula injection. A cell whose first
// byte a spreadsheet could read as a formula or control prefix is prefixed
// with a single quote; everything else is returned unchanged.
func EscapeCSVCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// EscapeCSVRow applies EscapeCSVCell to every cell of row.
func EscapeCSVRow(row []string) []string {
	escaped := make([]string, len(row))
	for i, cell := range row {
		escaped[i] = EscapeCSVCell(cell)
	}
	return escaped
}

// SafeCSVHeaders escapes a header row. Static headers pass through; the
// call exists so header rows built from data get the same treatment.
func SafeCSVHeaders(headers []string) []string {
	return EscapeCSVRow(headers)
}

// quoteCSVCell wraps cell in double quotes, doubling embedded quotes.
func quoteCSVCell(cell string) string {
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// needsQuotes reports whether an RFC 4180 reader would misparse cell unquoted.
func needsQuotes(cell string) bool {
	if cell == "" {
		return false
	}
	return strings.ContainsAny(cell, ",\"\r\n") || cell[0] == ' ' || cell[0] == '\t'
}
