package ledger

import "errors"

// DefaultCapacity matches the lap buffer of the handheld devices.
const DefaultCapacity = 90

// ErrLedgerFull is returned when the ledger refuses further splits.
// The stopwatch keeps running; the caller must surface the condition.
var ErrLedgerFull = errors.New("split ledger full")

// ErrNonMonotonic is returned when a split's cumulative time does not
// advance past the previous entry.
var ErrNonMonotonic = errors.New("split not after previous split")

// SplitRecord is immutable once appended.
type SplitRecord struct {
	SequenceNumber int   `json:"sequenceNumber"`
	LapDurationMs  int64 `json:"lapDurationMs"`
	CumulativeMs   int64 `json:"cumulativeMs"`
	Timestamp      int64 `json:"timestamp"`
}

// Ledger is the append-only, bounded sequence of local splits.
type Ledger struct {
	capacity int
	records  []SplitRecord
}

func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		records:  make([]SplitRecord, 0, capacity),
	}
}

// Append adds a split at the given cumulative elapsed time, deriving the
// lap duration from the previous entry (or from zero for the first).
func (l *Ledger) Append(cumulativeMs, timestampMs int64) (SplitRecord, error) {
	if len(l.records) >= l.capacity {
		return SplitRecord{}, ErrLedgerFull
	}
	var prevCumulative int64
	if n := len(l.records); n > 0 {
		prevCumulative = l.records[n-1].CumulativeMs
	}
	if cumulativeMs <= prevCumulative {
		return SplitRecord{}, ErrNonMonotonic
	}
	rec := SplitRecord{
		SequenceNumber: len(l.records) + 1,
		LapDurationMs:  cumulativeMs - prevCumulative,
		CumulativeMs:   cumulativeMs,
		Timestamp:      timestampMs,
	}
	l.records = append(l.records, rec)
	return rec, nil
}

func (l *Ledger) Len() int { return len(l.records) }

func (l *Ledger) Capacity() int { return l.capacity }

// Records returns a copy of the ledger content in append order.
func (l *Ledger) Records() []SplitRecord {
	out := make([]SplitRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Last returns the most recent record.
func (l *Ledger) Last() (SplitRecord, bool) {
	if len(l.records) == 0 {
		return SplitRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

func (l *Ledger) Clear() {
	l.records = l.records[:0]
}
