package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kylin1020/spinneret/internal/model"
)

func TestCSVExport(t *testing.T) {
	t.Parallel()

	t.Run("header from first item's sorted fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		exp := NewCSV(&buf)

		item := model.Item{"word": "foo", "count": 3, "url": "http://example.test/"}
		if err := exp.Export(context.Background(), item); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Flush(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected header and one row, got %d lines", len(lines))
		}
		if lines[0] != "count,url,word" {
			t.Errorf("expected sorted header, got %q", lines[0])
		}
		if lines[1] != "3,http://example.test/,foo" {
			t.Errorf("unexpected row: %q", lines[1])
		}
	})

	t.Run("column order is fixed by the first item", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		exp := NewCSV(&buf)
		ctx := context.Background()

		if err := exp.Export(ctx, model.Item{"a": "1", "b": "2"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		// Missing "a", extra "c": the row keeps the original columns.
		if err := exp.Export(ctx, model.Item{"b": "4", "c": "5"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Flush(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and two rows, got %d lines", len(lines))
		}
		if lines[2] != ",4" {
			t.Errorf("expected missing field empty and extra field dropped, got %q", lines[2])
		}
	})

	t.Run("custom delimiter", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		exp := NewCSV(&buf, WithDelimiter('\t'))

		if err := exp.Export(context.Background(), model.Item{"a": "1", "b": "2"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Flush(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.HasPrefix(buf.String(), "a\tb\n") {
			t.Errorf("expected tab-delimited header, got %q", buf.String())
		}
	})

	t.Run("closed exporter rejects items", func(t *testing.T) {
		t.Parallel()

		exp := NewCSV(&bytes.Buffer{})
		if err := exp.Close(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Export(context.Background(), model.Item{"a": "1"}); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		// Second close is a no-op.
		if err := exp.Close(); err != nil {
			t.Errorf("expected no error on double close, got %v", err)
		}
	})
}

func TestNewCSVFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "items.csv")
	exp, err := NewCSVFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := exp.Export(context.Background(), model.Item{"word": "foo"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected export file to exist, got %v", err)
	}
	if got := string(data); got != "word\nfoo\n" {
		t.Errorf("unexpected file contents: %q", got)
	}
}

func TestNewCSVFileBadPath(t *testing.T) {
	t.Parallel()

	if _, err := NewCSVFile(filepath.Join(t.TempDir(), "missing", "items.csv")); err == nil {
		t.Error("expected error for unwritable path, got nil")
	}
}
