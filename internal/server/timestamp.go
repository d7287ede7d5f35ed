package server

import (
	"context"
	"fmt"
	"time"

	aesdlog "github.com/aesdlog/aesdlogd"
	"github.com/aesdlog/aesdlogd/internal/logging"
	"github.com/aesdlog/aesdlogd/internal/sink"
)

// timestampLayout renders the wall-clock line in the RFC 1123-like form
// spec.md §4.F specifies: "timestamp:%a, %d %b %Y %H:%M:%S %z\n".
const timestampLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// RunTimestampProducer appends a formatted timestamp line to the sink every
// interval until ctx is cancelled (spec.md §4.F; production callers pass
// constants.TimestampInterval). The wake-up time advances by a fixed
// interval rather than sleeping a fixed duration each iteration, so slow
// appends don't accumulate drift.
func RunTimestampProducer(ctx context.Context, interval time.Duration, s sink.Interface, metrics *aesdlog.Metrics, logger *logging.Logger) {
	next := time.Now()
	for {
		next = next.Add(interval)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		line := fmt.Sprintf("timestamp:%s\n", time.Now().Format(timestampLayout))
		s.Lock()
		err := s.Append([]byte(line))
		s.Unlock()

		if err != nil {
			if logger != nil {
				logger.Warnf("timestamp producer: append failed: %v", err)
			}
			continue
		}
		if metrics != nil {
			metrics.RecordTimestamp()
		}
	}
}
