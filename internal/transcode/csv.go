package transcode

import (
	"strings"
)

// escapeField quotes a field only when it contains a comma, a double quote,
// or a newline, doubling any embedded quotes.
func escapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatCSV renders records with "\n" between rows and no trailing newline.
func FormatCSV(records [][]string) string {
	var sb strings.Builder
	for i, rec := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, field := range rec {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(escapeField(field))
		}
	}
	return sb.String()
}

// ParseCSV is the inverse of FormatCSV. Quote state is tracked byte by byte
// across line breaks, so quoted newlines stay inside their field; "" inside
// quotes is a literal quote. CRLF row endings are accepted, a leading UTF-8
// BOM is dropped, and rows whose raw text is blank are ignored.
func ParseCSV(data string) [][]string {
	data = strings.TrimPrefix(data, "\ufeff")

	var (
		records  [][]string
		fields   []string
		cur      strings.Builder
		inQuotes bool
		start    int
	)
	endRecord := func(end int) {
		fields = append(fields, cur.String())
		cur.Reset()
		if strings.TrimSpace(data[start:end]) != "" {
			records = append(records, fields)
		}
		fields = nil
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		if inQuotes {
			switch {
			case c == '"' && i+1 < len(data) && data[i+1] == '"':
				cur.WriteByte('"')
				i++
			case c == '"':
				inQuotes = false
			default:
				cur.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inQuotes = true
		case c == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		case c == '\r' && i+1 < len(data) && data[i+1] == '\n':
			// the newline ends the record
		case c == '\n':
			endRecord(i)
			start = i + 1
		default:
			cur.WriteByte(c)
		}
	}
	if start < len(data) {
		endRecord(len(data))
	}
	return records
}
