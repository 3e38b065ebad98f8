package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kylin1020/spinneret/internal/model"
)

// CSV exports items as delimited text. The header row is taken from the
// first exported item's sorted field names, which fixes the column
// order for the rest of the file: later items write their matching
// fields in that order, missing fields become empty cells, and fields
// absent from the first item are not exported.
type CSV struct {
	mu sync.Mutex
	w  *csv.Writer

	// closer is set when the exporter owns the destination file.
	closer io.Closer

	header []string
	closed bool
}

// CSVOption configures a CSV exporter.
type CSVOption func(*CSV)

// WithDelimiter sets the field delimiter, for example '\t' for TSV.
func WithDelimiter(delimiter rune) CSVOption {
	return func(c *CSV) {
		c.w.Comma = delimiter
	}
}

// NewCSV returns a CSV exporter writing to w. The caller owns w; Close
// flushes but does not close it.
func NewCSV(w io.Writer, opts ...CSVOption) *CSV {
	c := &CSV{w: csv.NewWriter(w)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCSVFile returns a CSV exporter writing to the file at path,
// creating or truncating it. Close closes the file.
func NewCSVFile(path string, opts ...CSVOption) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	c := NewCSV(f, opts...)
	c.closer = f
	return c, nil
}

// Export writes one item as a row, emitting the header first if this is
// the first item.
func (c *CSV) Export(_ context.Context, item model.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.header == nil {
		c.header = item.Fields()
		if err := c.w.Write(c.header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := make([]string, len(c.header))
	for i, field := range c.header {
		if v, ok := item[field]; ok && v != nil {
			row[i] = fmt.Sprint(v)
		}
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

// Flush commits buffered rows to the underlying writer.
func (c *CSV) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and, when the exporter owns the destination file,
// closes it.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
