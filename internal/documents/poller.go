package documents

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
)

// poller holds the poll loop state of an Orchestrator.
//
// Lock order: lifeMu, then pollMu, then Orchestrator.mu.
type poller struct {
	lifeMu sync.Mutex // serializes Start and Stop

	pollMu      sync.Mutex
	started     bool
	ownerCtx    context.Context
	ownerCancel context.CancelFunc
	polling     bool
	loopCancel  context.CancelFunc
	stopReason  string
	ticks       int

	tickMu sync.Mutex // ticks never overlap
	wg     sync.WaitGroup
}

// Start enables background polling. The loop runs whenever the job
// sequence contains a processing job, until Stop is called or ctx ends.
// Calling Start on a started orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	o.pollMu.Lock()
	if o.started {
		o.pollMu.Unlock()
		return nil
	}
	o.ownerCtx, o.ownerCancel = context.WithCancel(ctx)
	o.started = true
	o.pollMu.Unlock()

	o.logger.Debug("orchestrator started", "poll_interval", o.interval().String())
	o.ensurePolling()
	return nil
}

// Stop cancels the poll loop and waits for it to exit. No further ticks
// are scheduled once Stop returns. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	o.pollMu.Lock()
	if !o.started {
		o.pollMu.Unlock()
		return
	}
	o.started = false
	if o.polling && o.stopReason == "" {
		o.stopReason = event.StopCanceled
	}
	o.ownerCancel()
	o.pollMu.Unlock()

	o.wg.Wait()
	o.logger.Debug("orchestrator stopped")
}

// Polling reports whether the poll loop is running.
func (o *Orchestrator) Polling() bool {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	return o.polling
}

// SetPollInterval changes the delay between ticks. A running loop picks
// it up when scheduling its next tick. Non-positive values are ignored.
func (o *Orchestrator) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	o.pollInterval = d
}

func (o *Orchestrator) interval() time.Duration {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	return o.pollInterval
}

// PollOnce runs a single tick synchronously and reports whether any job
// left the processing state. It does not require Start.
func (o *Orchestrator) PollOnce(ctx context.Context) bool {
	return o.tick(ctx)
}

// ensurePolling starts the loop if the orchestrator is started, the loop
// is not running, and some job is processing.
func (o *Orchestrator) ensurePolling() {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()

	if !o.started || o.polling || o.ownerCtx.Err() != nil {
		return
	}
	processing := len(o.ProcessingIDs())
	if processing == 0 {
		return
	}

	ctx, cancel := context.WithCancel(o.ownerCtx)
	o.polling = true
	o.loopCancel = cancel
	o.stopReason = ""
	o.ticks = 0

	o.wg.Add(1)
	go o.loop(ctx, cancel, processing)
}

// cancelLoop stops a running loop without waiting for it.
func (o *Orchestrator) cancelLoop(reason string) {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()

	if !o.polling || o.loopCancel == nil {
		return
	}
	if o.stopReason == "" {
		o.stopReason = reason
	}
	o.loopCancel()
}

func (o *Orchestrator) loop(ctx context.Context, cancel context.CancelFunc, processing int) {
	defer o.wg.Done()
	defer cancel()

	o.logger.Info("poll loop started", "processing", processing)
	o.bus.Publish(event.NewPollStartedEvent(processing))

	timer := time.NewTimer(o.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.finishLoop("")
			return
		case <-timer.C:
		}

		o.tick(ctx)

		// The idle check and clearing the flag happen under one lock so a
		// concurrent listing either sees the loop running or starts a new one.
		o.pollMu.Lock()
		o.ticks++
		if ctx.Err() == nil && len(o.ProcessingIDs()) > 0 {
			interval := o.pollInterval
			o.pollMu.Unlock()
			timer.Reset(interval)
			continue
		}
		reason := event.StopIdle
		if ctx.Err() != nil {
			reason = ""
		}
		o.finishLocked(reason)
		return
	}
}

func (o *Orchestrator) finishLoop(reason string) {
	o.pollMu.Lock()
	o.finishLocked(reason)
}

// finishLocked clears the loop state and publishes PollStopped. It is called
// with pollMu held and releases it. Jobs listed while the loop was shutting
// down found it still running, so a new loop is started for them.
func (o *Orchestrator) finishLocked(reason string) {
	if reason == "" {
		reason = o.stopReason
	}
	if reason == "" {
		reason = event.StopCanceled
	}
	ticks := o.ticks
	o.polling = false
	o.loopCancel = nil
	o.stopReason = ""
	o.pollMu.Unlock()

	o.logger.Info("poll loop stopped", "reason", reason, "ticks", ticks)
	o.bus.Publish(event.NewPollStoppedEvent(reason, ticks))

	o.ensurePolling()
}

// tick checks every job that was processing when the tick began, one at a
// time, and re-lists once if any of them changed.
func (o *Orchestrator) tick(ctx context.Context) bool {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	changed := false
	for _, id := range o.ProcessingIDs() {
		if ctx.Err() != nil {
			return changed
		}
		logger := o.logger.WithJob(id)

		checkCtx, cancel := context.WithTimeout(ctx, o.checkTimeout)
		st, err := o.svc.DocumentStatus(checkCtx, id)
		cancel()
		if err != nil {
			if errors.Is(err, errors.ErrJobNotFound) {
				logger.Info("job disappeared while processing")
				changed = true
				continue
			}
			logger.Warn("status check failed", "error", err, "retryable", errors.IsRetryable(err))
			continue
		}
		if st.Status == api.StatusProcessing {
			continue
		}

		logger.Info("job status changed", "status", st.Status, "progress", st.Progress)
		o.bus.Publish(event.NewJobStatusChangedEvent(id, api.StatusProcessing, st.Status, st.Progress))
		changed = true
	}

	if changed && ctx.Err() == nil {
		if _, err := o.List(ctx); err != nil {
			o.logger.Warn("re-list after status change failed", "error", err)
		}
	}
	return changed
}
