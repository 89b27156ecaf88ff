package ledger

import "time"

// RunStore defines the ledger operations used outside this package.
// Consumers should depend on this interface rather than the concrete *DB type.
type RunStore interface {
	BeginRun(r RunRow) (int64, error)
	RecordEntry(e EntryRow) error
	FinishRun(id int64, count int, runErr error, finished time.Time) error
	ListRuns(limit int) ([]RunRow, error)
	GetRun(id int64) (*RunRow, error)
	Entries(runID int64) ([]EntryRow, error)
	LastChecksum(source, output string) (string, error)
	Ping() error
	Close() error
}

// Verify *DB satisfies RunStore at compile time.
var _ RunStore = (*DB)(nil)
