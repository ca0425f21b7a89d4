package output

import (
	"strings"
)

// PlainFormatter prints tab-separated lines for scripts.
type PlainFormatter struct {
	*Formatter
}

// NewPlainFormatter creates a new plain formatter.
func NewPlainFormatter(f *Formatter) *PlainFormatter {
	return &PlainFormatter{Formatter: f}
}

// Row prints one tab-separated line. Tabs and newlines inside fields are
// replaced by spaces.
func (p *PlainFormatter) Row(fields ...string) {
	clean := make([]string, len(fields))
	for i, f := range fields {
		clean[i] = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(f)
	}
	p.Println(strings.Join(clean, "\t"))
}
