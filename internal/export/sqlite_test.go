package export

import (
	"context"
	"errors"
	"testing"

	"github.com/kylin1020/spinneret/internal/model"
)

func TestSQLiteExport(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		exp, err := OpenSQLite(t.TempDir(), "wordsearch")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer exp.Close()

		ctx := context.Background()
		want := []model.Item{
			{"word": "foo", "url": "http://example.test/1"},
			{"word": "bar", "url": "http://example.test/2"},
		}
		for _, item := range want {
			if err := exp.Export(ctx, item); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if err := exp.Flush(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		n, err := exp.Count(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 items, got %d", n)
		}

		items, err := exp.Items(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		for i, item := range items {
			if item["word"] != want[i]["word"] {
				t.Errorf("item %d: expected word %q, got %q", i, want[i]["word"], item["word"])
			}
		}
	})

	t.Run("pending inserts visible before flush", func(t *testing.T) {
		t.Parallel()

		exp, err := OpenSQLite(t.TempDir(), "test")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer exp.Close()

		ctx := context.Background()
		if err := exp.Export(ctx, model.Item{"word": "foo"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		n, err := exp.Count(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 1 {
			t.Errorf("expected pending insert to be counted, got %d", n)
		}
	})

	t.Run("flushed items survive reopen", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		ctx := context.Background()

		exp, err := OpenSQLite(dir, "test")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Export(ctx, model.Item{"word": "foo"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Close(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		reopened, err := OpenSQLite(dir, "test")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer reopened.Close()

		n, err := reopened.Count(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 item after reopen, got %d", n)
		}
	})

	t.Run("spiders are isolated", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		ctx := context.Background()

		first, err := OpenSQLite(dir, "first")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := first.Export(ctx, model.Item{"word": "foo"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := first.Close(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		second, err := OpenSQLite(dir, "second")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer second.Close()

		n, err := second.Count(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 0 {
			t.Errorf("expected no items for other spider, got %d", n)
		}
	})

	t.Run("closed exporter rejects items", func(t *testing.T) {
		t.Parallel()

		exp, err := OpenSQLite(t.TempDir(), "test")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := exp.Close(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if err := exp.Export(context.Background(), model.Item{"a": "1"}); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		if err := exp.Close(); err != nil {
			t.Errorf("expected no error on double close, got %v", err)
		}
	})
}
