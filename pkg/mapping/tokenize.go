package mapping

import "strings"

const delimiter = "\t"

// Tokenize splits one mapping file line into trimmed field values.
// Trailing newline characters are removed first. Empty fields, including
// trailing ones, are kept so positions line up with the header.
func Tokenize(line string) []string {
	line = strings.TrimRight(line, "\n\r")
	toks := strings.Split(line, delimiter)
	for i, t := range toks {
		toks[i] = strings.TrimSpace(t)
	}
	return toks
}

// Join renders values as one tab-delimited line without a line terminator.
func Join(values []string) string {
	return strings.Join(values, delimiter)
}

func joinFields(fields []Field) string {
	vals := make([]string, len(fields))
	for i, f := range fields {
		vals[i] = string(f)
	}
	return Join(vals)
}
