package utils

import "fmt"

// FormatTime renders a duration as mm:ss:cc, the format shown on the
// device displays and carried in split frames.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	seconds := (ms / 1000) % 60
	centis := (ms % 1000) / 10
	return fmt.Sprintf("%02d:%02d:%02d", minutes, seconds, centis)
}
