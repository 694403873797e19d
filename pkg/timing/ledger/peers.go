package ledger

import "github.com/samber/lo"

// MaxLanes bounds the peer split table, lanes 0..MaxLanes-1.
const MaxLanes = 10

// PeerSplit is the last known split of another participant's lane.
type PeerSplit struct {
	Lane      int
	Timestamp int64
	Time      string
	Valid     bool
}

// PeerTable tracks the last split per lane as reported by the server.
// Entries are overwritten in place and only removed wholesale by Clear.
type PeerTable struct {
	slots [MaxLanes]PeerSplit
}

func NewPeerTable() *PeerTable {
	return &PeerTable{}
}

// Update records a split for a lane. Out-of-range lanes are refused.
func (t *PeerTable) Update(lane int, timestampMs int64, text string) bool {
	if lane < 0 || lane >= MaxLanes {
		return false
	}
	t.slots[lane] = PeerSplit{
		Lane:      lane,
		Timestamp: timestampMs,
		Time:      text,
		Valid:     true,
	}
	return true
}

func (t *PeerTable) Get(lane int) (PeerSplit, bool) {
	if lane < 0 || lane >= MaxLanes {
		return PeerSplit{}, false
	}
	return t.slots[lane], t.slots[lane].Valid
}

// Snapshot returns the valid entries in lane order.
func (t *PeerTable) Snapshot() []PeerSplit {
	return lo.Filter(t.slots[:], func(s PeerSplit, _ int) bool {
		return s.Valid
	})
}

func (t *PeerTable) Clear() {
	t.slots = [MaxLanes]PeerSplit{}
}
