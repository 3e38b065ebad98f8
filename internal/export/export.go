package export

import (
	"context"
	"errors"

	"github.com/kylin1020/spinneret/internal/model"
)

// ErrClosed is returned when exporting through an exporter that has
// already been closed.
var ErrClosed = errors.New("export: exporter is closed")

// Exporter writes items to a destination. Implementations buffer
// freely; Flush commits everything accepted so far. Export and Flush
// must be safe for concurrent use.
type Exporter interface {
	// Export accepts one item for writing.
	Export(ctx context.Context, item model.Item) error

	// Flush commits buffered items to the destination.
	Flush() error

	// Close flushes and releases the destination. The exporter is
	// unusable afterwards.
	Close() error
}
