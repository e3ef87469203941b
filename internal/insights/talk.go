package insights

import (
	"math"

	"callaudit-platform/internal/calls"
)

// TalkPatterns derives talk statistics from the timing metadata the telephony
// side recorded on the call. Ratio is agent talk over customer talk, rounded
// to two decimals; zero customer talk yields ratio 0.
func TalkPatterns(c calls.Call) TalkStats {
	stats := TalkStats{
		AgentTalkSeconds:    c.AgentTalkSeconds,
		CustomerTalkSeconds: c.CustomerTalkSeconds,
		SilenceSeconds:      c.SilenceSeconds,
		DeadAirCount:        c.DeadAirCount,
		InterruptionCount:   c.InterruptionCount,
	}
	if c.CustomerTalkSeconds > 0 {
		ratio := float64(c.AgentTalkSeconds) / float64(c.CustomerTalkSeconds)
		stats.TalkToListenRatio = math.Round(ratio*100) / 100
	}
	return stats
}
