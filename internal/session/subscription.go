package session

import (
	"strconv"

	"github.com/fren29/tiodb/internal/container"
)

// Subscription is the per-handle live-event-delivery record described
// by spec.md §3. At most one exists per handle; it is either in the
// session's pending-snapshot set or has a non-zero cookie, never both.
type Subscription struct {
	handle    uint64
	container container.Container
	cookie    uint64
	binary    bool

	// eventName is the event kind synthesized while streaming a
	// snapshot: "push_back" for ordered containers, "set" for maps.
	eventName string

	// filterStart/filterEnd are the slice window bounds. Defaults
	// (0, -1) mean "no window" — everything is forwarded unmodified.
	filterStart int
	filterEnd   int

	// nextRecord is the next index to emit during an indexed-walk
	// snapshot.
	nextRecord int

	// resultSet drives the snapshot in preference to indexed Get when
	// the container returned a cursor from Query.
	resultSet container.ResultSet
}

// isDefaultWindow reports the spec.md §4.3 "forward everything
// unmodified" fast path.
func (s *Subscription) isDefaultWindow() bool {
	return s.filterStart == 0 && s.filterEnd == -1
}

// normalizeIndex applies Python-style from-end indexing and clamps to
// [0, recordCount-1], per spec.md §4.3's slice rewrite rule.
func normalizeIndex(idx, recordCount int) int {
	if idx < 0 {
		idx = recordCount + idx
	}
	if idx < 0 {
		idx = 0
	}
	if recordCount > 0 && idx > recordCount-1 {
		idx = recordCount - 1
	}
	if recordCount == 0 {
		idx = 0
	}
	return idx
}

// parseSnapshotStart reports whether start parses as an integer,
// matching the reference's lexical_cast<int> attempt in Subscribe /
// BinarySubscribe.
func parseSnapshotStart(start string) (int, bool) {
	n, err := strconv.Atoi(start)
	if err != nil {
		return 0, false
	}
	return n, true
}

// snapshotEventName returns the event kind synthesized for a
// snapshot, per spec.md §3: push_back for ordered (list) containers,
// set for maps.
func snapshotEventName(c container.Container) string {
	if c.Ordered() {
		return "push_back"
	}
	return "set"
}
