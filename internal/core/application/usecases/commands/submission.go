package commands

import (
	"context"

	"routesync/internal/core/domain/model/delivery"
)

// Submission is a delivery completion running in the background.
//
// Progress delivers one value per uploaded photo and is closed when the
// submission finishes, just before Done. Wait returns the outcome.
type Submission struct {
	progress chan delivery.Progress
	done     chan struct{}
	result   CompleteDeliveryResult
	err      error
}

// Submit starts cmd in its own goroutine. Cancelling ctx abandons the
// submission only if no upload has started yet.
func (h CompleteDeliveryCommandHandler) Submit(ctx context.Context, cmd CompleteDeliveryCommand) *Submission {
	s := &Submission{
		progress: make(chan delivery.Progress, delivery.MaxPhotos),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.progress)
		s.result, s.err = h.Handle(ctx, cmd, func(p delivery.Progress) {
			select {
			case s.progress <- p:
			default:
			}
		})
	}()

	return s
}

func (s *Submission) Progress() <-chan delivery.Progress {
	return s.progress
}

func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the submission finishes.
func (s *Submission) Wait() (CompleteDeliveryResult, error) {
	<-s.done
	return s.result, s.err
}
