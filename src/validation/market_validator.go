package validation

import "strings"

// -----------------------------------------------------------------------------
// Symbol / fiat normalization shared by the REST and streaming paths.
// -----------------------------------------------------------------------------

// NormalizeSymbols trims, uppercases and de-duplicates a symbol list,
// preserving first-seen order. Blank entries are dropped.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))

	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// -----------------------------------------------------------------------------

// NormalizeSymbolsCSV normalizes a comma separated symbol list.
func NormalizeSymbolsCSV(csv string) []string {
	return NormalizeSymbols(strings.Split(csv, ","))
}

// -----------------------------------------------------------------------------

// NormalizeFiat trims and uppercases a fiat code. Blank stays blank so
// callers can apply their own default.
func NormalizeFiat(fiat string) string {
	return strings.ToUpper(strings.TrimSpace(fiat))
}
