package submit

import (
	"context"

	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/pkg/errors"
)

// Outcome is what became of a submission attempt.
type Outcome string

const (
	// Submitted means every step reached the backend.
	Submitted Outcome = "submitted"
	// Queued means the run was saved for a later flush.
	Queued Outcome = "queued"
	// Restarted means the backend does not know the completion session and
	// the run has to be taken again from the first question.
	Restarted Outcome = "restarted"
)

type Submitter struct {
	Queue *queue.Queue
}

// Submit transmits run when sendNow is set, otherwise it queues it. Failed
// transmissions are queued whole; nothing already sent is rolled back.
func (s *Submitter) Submit(ctx context.Context, t Transport, run queue.Survey, sendNow bool) (Outcome, error) {
	if sendNow {
		err := transmit(ctx, t, run, nil)
		if err == nil {
			log.Infof("submit: survey %s submitted", run.SurID)
			return Submitted, nil
		}
		if restartable(err) {
			log.Warnf("submit.start: survey %s: %v", run.SurID, err)
			return Restarted, nil
		}
		log.Warnf("submit: %v; saving for later", err)
	}

	if err := s.Queue.Append(ctx, run); err != nil {
		return "", errors.Wrapf(err, "queue survey %s", run.SurID)
	}
	log.Infof("submit: survey %s queued", run.SurID)
	return Queued, nil
}
