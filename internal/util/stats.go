package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide frame/message counter.
var Stats = &stats{}

type stats struct {
	FramesSent   atomic.Int64 // frames written to the video channel
	FramesRecv   atomic.Int64 // frames decoded from the video channel
	MessagesSent atomic.Int64 // text messages written to the chat channel
	MessagesRecv atomic.Int64 // text messages read from the chat channel
	Reports      atomic.Int64 // coordinate reports scored (server) or sent (client)
}

func (s *stats) AddFrameSent()   { s.FramesSent.Add(1) }
func (s *stats) AddFrameRecv()   { s.FramesRecv.Add(1) }
func (s *stats) AddMessageSent() { s.MessagesSent.Add(1) }
func (s *stats) AddMessageRecv() { s.MessagesRecv.Add(1) }
func (s *stats) AddReport()      { s.Reports.Add(1) }

// snapshot is a point-in-time copy of the counters.
type snapshot struct {
	framesSent, framesRecv, msgSent, msgRecv, reports int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		framesSent: s.FramesSent.Load(),
		framesRecv: s.FramesRecv.Load(),
		msgSent:    s.MessagesSent.Load(),
		msgRecv:    s.MessagesRecv.Load(),
		reports:    s.Reports.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// statsInterval is the reporting period of StartStatsReporter.
const statsInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs session statistics
// every 10 seconds. Quiet periods are not logged. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()

		prev := Stats.snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(prev, cur, statsInterval))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a one-line rate summary between two snapshots.
func formatStats(prev, cur snapshot, period time.Duration) string {
	secs := period.Seconds()
	return fmt.Sprintf("Frames: %5.1f↑ %5.1f↓ /s | Msgs: %3d↑ %3d↓ | Reports: %3d",
		float64(cur.framesSent-prev.framesSent)/secs,
		float64(cur.framesRecv-prev.framesRecv)/secs,
		cur.msgSent-prev.msgSent,
		cur.msgRecv-prev.msgRecv,
		cur.reports-prev.reports,
	)
}
