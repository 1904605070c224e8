package queue

import "time"

// Progress is a point-in-time view of the progress of a [Queue].
type Progress struct {
	HasStarted      bool
	HasFinished     bool
	StartTime       time.Time
	FinishTime      time.Time
	ProgressPct     float64
	TotalItems      int
	ProcessedItems  int
	InProgressItems int
	SuccessItems    int
	FailedItems     int
	TotalBytes      int64
	DoneBytes       int64
	BytesPerSec     float64
	TimeLeft        time.Duration
}

// Progress returns the [Progress] of the [Queue]. The percentage is based on
// bytes once byte totals are known, otherwise on items.
func (q *Queue[T]) Progress() Progress {
	q.RLock()
	defer q.RUnlock()

	p := Progress{
		HasStarted:      !q.startTime.IsZero(),
		HasFinished:     !q.finishTime.IsZero(),
		StartTime:       q.startTime,
		FinishTime:      q.finishTime,
		TotalItems:      len(q.items),
		ProcessedItems:  min(len(q.success)+len(q.failed), len(q.items)),
		InProgressItems: len(q.inProgress),
		SuccessItems:    len(q.success),
		FailedItems:     len(q.failed),
		TotalBytes:      q.totalBytes.Load(),
		DoneBytes:       q.doneBytes.Load(),
	}

	switch {
	case p.TotalBytes > 0:
		p.ProgressPct = float64(p.DoneBytes) / float64(p.TotalBytes) * 100 //nolint:mnd
	case p.TotalItems > 0:
		p.ProgressPct = float64(p.ProcessedItems) / float64(p.TotalItems) * 100 //nolint:mnd
	}
	p.ProgressPct = max(float64(0), min(p.ProgressPct, float64(100))) //nolint:mnd

	if p.HasStarted && p.DoneBytes > 0 {
		end := time.Now()
		if p.HasFinished {
			end = p.FinishTime
		}

		elapsed := max(end.Sub(p.StartTime).Seconds(), 1)
		p.BytesPerSec = float64(p.DoneBytes) / elapsed

		if remaining := p.TotalBytes - p.DoneBytes; remaining > 0 && !p.HasFinished {
			p.TimeLeft = time.Duration(float64(remaining) / p.BytesPerSec * float64(time.Second))
		}
	}

	return p
}
