// Package compaction holds the accounting shared between the range-deletion
// aggregator and the compaction that drives it.
//
// Reference: RocksDB db/compaction_iteration_stats.h
package compaction

// IterationStats accumulates per-compaction record drop counters.
type IterationStats struct {
	// NumRecordDropObsolete counts records dropped because no snapshot can
	// observe them.
	NumRecordDropObsolete int64

	// NumRangeDelDropObsolete counts range tombstones dropped at the
	// bottommost level because the keys they covered are already gone.
	NumRangeDelDropObsolete int64
}

// Add merges other into s.
func (s *IterationStats) Add(other *IterationStats) {
	s.NumRecordDropObsolete += other.NumRecordDropObsolete
	s.NumRangeDelDropObsolete += other.NumRangeDelDropObsolete
}
