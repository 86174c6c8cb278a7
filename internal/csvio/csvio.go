// Package csvio exports profit results and SKU templates as CSV and parses
// SKU imports.
package csvio

import (
	"bufio"
	"io"
	"strings"
)

// ContentType is the media type served for exports.
const ContentType = "text/csv; charset=utf-8"

// WriteQuoted writes headers and rows with every cell double-quoted and
// embedded quotes doubled. Lines are separated by a single newline and the
// last line has no terminator.
func WriteQuoted(w io.Writer, headers []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if err := writeLine(bw, headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if err := writeLine(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLine(bw *bufio.Writer, cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(`"` + strings.ReplaceAll(cell, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return nil
}
