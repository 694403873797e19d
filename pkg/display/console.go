package display

import (
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/azckamp/lanetimer/pkg/timing/ledger"
	"github.com/azckamp/lanetimer/pkg/timing/stopwatch"
	"github.com/azckamp/lanetimer/pkg/utils"
)

// Console renders core notifications as terminal output, standing in for
// the TFT display of the handheld devices. It implements core.Listener;
// all methods are called synchronously from the control loop.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) OnStateChanged(state stopwatch.State) {
	fmt.Fprintf(c.out, "== %s\n", state)
}

func (c *Console) OnLapAdded(rec ledger.SplitRecord) {
	fmt.Fprintf(c.out, "lap %2d  %s  (total %s)\n",
		rec.SequenceNumber,
		utils.FormatTime(rec.LapDurationMs),
		utils.FormatTime(rec.CumulativeMs))
}

func (c *Console) OnConnectionChanged(connected bool) {
	fmt.Fprintf(c.out, "-- %s\n", lo.Ternary(connected, "online", "offline"))
}

func (c *Console) OnTimeSync(synced bool) {
	fmt.Fprintf(c.out, "-- clock %s\n", lo.Ternary(synced, "synced", "unsynced"))
}

func (c *Console) OnEventHeatChanged(event, heat string) {
	fmt.Fprintf(c.out, "-- event %s heat %s\n", event, heat)
}

func (c *Console) OnPeerSplit(lane int, text string) {
	fmt.Fprintf(c.out, "lane %d  %s\n", lane, text)
}

func (c *Console) OnClearRequested() {
	fmt.Fprintln(c.out, "-- cleared")
}

// RenderElapsed draws the running time line, called on the display
// refresh cadence while RUNNING.
func (c *Console) RenderElapsed(elapsedMs int64) {
	fmt.Fprintf(c.out, "\r%s ", utils.FormatTime(elapsedMs))
}
