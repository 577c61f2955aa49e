package submit

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/pkg/errors"
)

var ErrFlushInProgress = errors.New("queue flush already in progress")

// Policy decides what a flush does with the surveys it failed to deliver.
type Policy string

const (
	// DiscardAlways empties the flushed batch whatever happened to it.
	DiscardAlways Policy = "discard-always"
	// RetainFailed keeps undelivered surveys queued for the next flush.
	RetainFailed Policy = "retain-failed"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case DiscardAlways, RetainFailed:
		return p, nil
	case "":
		return DiscardAlways, nil
	}
	return "", fmt.Errorf("unknown replay policy %q", s)
}

// Report sums up one flush.
type Report struct {
	Surveys   int   `json:"surveys"`
	Questions int   `json:"questions"`
	Submitted int   `json:"submitted"`
	Failed    int   `json:"failed"`
	Retained  int   `json:"retained"`
	Err       error `json:"-"`
}

// Replayer flushes the offline queue. Only one flush runs at a time.
type Replayer struct {
	Queue  *queue.Queue
	Policy Policy

	mu       sync.Mutex
	running  bool
	progress float64
}

// Status reports whether a flush is running and how far along it is, in
// percent of the queued questions.
func (r *Replayer) Status() (bool, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.progress
}

// Flush replays every queued survey in queue order. A survey that fails is
// logged and skipped; the batch goes on. Once done, the flushed surveys
// leave the queue, except failed ones when the policy retains them.
// Surveys the backend no longer knows are never retained.
//
// progress, if not nil, is called with the overall percentage after every
// step.
func (r *Replayer) Flush(ctx context.Context, t Transport, progress func(float64)) (Report, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Report{}, ErrFlushInProgress
	}
	r.running = true
	r.progress = 0
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	list, err := r.Queue.List(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Surveys: len(list), Questions: queue.Total(list)}
	done := 0.0
	notify := func() {
		pct := 100.0
		if report.Questions > 0 {
			pct = done / float64(report.Questions) * 100
		}
		r.mu.Lock()
		r.progress = pct
		r.mu.Unlock()
		if progress != nil {
			progress(pct)
		}
	}

	var retained []queue.Survey
	for _, s := range list {
		base := done
		err := transmit(ctx, t, s, func(d float64) {
			done += d
			notify()
		})
		done = base + float64(len(s.Data))

		if err != nil {
			log.Warnf("replay.entry: %v", err)
			report.Failed++
			report.Err = multierror.Append(report.Err, err)
			if r.Policy == RetainFailed && !restartable(err) {
				retained = append(retained, s)
			}
			notify()
			continue
		}
		report.Submitted++
		notify()
	}
	if len(list) == 0 {
		notify()
	}

	report.Retained = len(retained)
	if err := r.Queue.Settle(ctx, len(list), retained); err != nil {
		return report, err
	}

	log.WithFields(log.Fields{
		"surveys":   report.Surveys,
		"submitted": report.Submitted,
		"failed":    report.Failed,
		"retained":  report.Retained,
	}).Info("replay: done")
	return report, nil
}
