package storage

import (
	"context"

	"pipewatch/internal/ledger"
)

// Archiver persists closed alert records for long-term history. The
// evaluation core never deletes records; an archiver is where the embedding
// system takes over ownership (database, object store, etc).
type Archiver interface {
	Archive(ctx context.Context, rec *ledger.AlertRecord) error
	Close() error
}
