package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the layout of date fields in exported files (dd/mm/yyyy).
const DateFormat = "02/01/2006"

// DefaultSeparator separates fields when an exporter does not set its own.
// The import grammars only accept files written with it.
const DefaultSeparator = ','

// Column maps one exported field to its header name.
type Column[T any] struct {
	Name  string
	Value func(T) any
}

// Header returns the column names joined by sep.
func Header[T any](cols []Column[T], sep rune) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, string(sep))
}

// Record renders one record as a line of double-quoted fields separated by sep.
func Record[T any](cols []Column[T], rec T, sep rune) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteRune(sep)
		}
		b.WriteByte('"')
		b.WriteString(FormatValue(c.Value(rec)))
		b.WriteByte('"')
	}
	return b.String()
}

// FormatValue renders a field value. Absent values render as the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case time.Time:
		return x.Format(DateFormat)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(DateFormat)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// CSVExporter writes records of one type using a fixed column table.
// Separator defaults to DefaultSeparator when zero. OnRecord, when set, is called
// with the running count after each record is written.
type CSVExporter[T any] struct {
	Columns   []Column[T]
	Separator rune
	OnRecord  func(count int64)
}

// NewCSVExporter returns a comma-separated exporter for the given columns.
func NewCSVExporter[T any](cols []Column[T]) *CSVExporter[T] {
	return &CSVExporter[T]{Columns: cols, Separator: DefaultSeparator}
}

// Export writes records to the file at path, replacing any existing content.
func (e *CSVExporter[T]) Export(records []T, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()
	return e.Write(f, records)
}

// Write writes the header line followed by one line per record.
func (e *CSVExporter[T]) Write(w io.Writer, records []T) error {
	sep := e.Separator
	if sep == 0 {
		sep = DefaultSeparator
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(e.Columns, sep) + "\n"); err != nil {
		return err
	}
	var count int64
	for _, rec := range records {
		if _, err := bw.WriteString(Record(e.Columns, rec, sep) + "\n"); err != nil {
			return err
		}
		count++
		if e.OnRecord != nil {
			e.OnRecord(count)
		}
	}
	return bw.Flush()
}
