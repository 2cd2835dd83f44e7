package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"outreach/api/pkg/clients/email"
	"outreach/api/pkg/events"
	"outreach/api/pkg/metrics"
	"outreach/api/services/storage"
)

var (
	ErrInvalidThrottle = errors.New("invalid throttle")
	ErrMissingAddress  = errors.New("lead has no email address")
	ErrMissingMessage  = errors.New("lead has no message template")
)

// sendTimeout bounds a single provider call. It is applied to a context
// detached from run cancellation so an in-flight send always completes.
const sendTimeout = 30 * time.Second

// DefaultRunHistory is how many finished runs a Sender remembers.
const DefaultRunHistory = 20

// Identity is the From name and address used on outbound mail.
type Identity struct {
	Name  string
	Email string
}

// Summary is the outcome of a bulk send.
type Summary struct {
	Total   int `json:"total"`
	Sent    int `json:"successCount"`
	Failed  int `json:"failCount"`
	Skipped int `json:"skippedCount"`
}

// Sender delivers generated messages to eligible leads, one at a time.
type Sender struct {
	store    storage.Storage
	mailer   email.Client
	identity Identity
	events   events.Publisher
	newPacer func(time.Duration) Pacer
	now      func() time.Time

	mu       sync.Mutex
	runs     map[uuid.UUID]*Run
	order    []uuid.UUID
	keepRuns int
}

// NewSender creates a Sender. pub may be nil.
func NewSender(store storage.Storage, mailer email.Client, identity Identity, pub events.Publisher) (*Sender, error) {
	if store == nil {
		return nil, fmt.Errorf("sender: store cannot be nil")
	}
	return &Sender{
		store:    store,
		mailer:   mailer,
		identity: identity,
		events:   pub,
		newPacer: NewPacer,
		now:      time.Now,
		runs:     make(map[uuid.UUID]*Run),
		keepRuns: DefaultRunHistory,
	}, nil
}

// Start validates the request, snapshots the eligible leads and processes
// them in the background. It returns as soon as the run is registered; the
// run keeps going after ctx is cancelled and stops only via Run.Cancel.
func (s *Sender) Start(ctx context.Context, throttlePerSecond int, reqID string) (*Run, error) {
	delay, err := ThrottleDelay(throttlePerSecond)
	if err != nil {
		return nil, err
	}
	if err := email.Validate(s.mailer); err != nil {
		return nil, err
	}

	leads, err := s.store.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	eligible := make([]*storage.Lead, 0, len(leads))
	for _, l := range leads {
		if l.Eligible() {
			eligible = append(eligible, l)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := newRun(len(eligible), delay, s.now(), cancel)

	s.mu.Lock()
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	s.pruneLocked()
	s.mu.Unlock()

	slog.Info("bulk send started", "runId", run.ID, "total", run.Total, "delay", delay, "requestId", reqID)
	events.Emit(s.events, reqID, events.TypeSendStarted, run.Snapshot())
	metrics.RunStarted()

	go func() {
		defer metrics.RunFinished()
		s.process(runCtx, run, eligible, s.newPacer(delay), reqID)
	}()
	return run, nil
}

// Send runs a bulk send to completion and returns its summary.
func (s *Sender) Send(ctx context.Context, throttlePerSecond int) (Summary, error) {
	run, err := s.Start(ctx, throttlePerSecond, "")
	if err != nil {
		return Summary{}, err
	}
	select {
	case <-run.Done():
		return run.Summary(), nil
	case <-ctx.Done():
		run.Cancel()
		<-run.Done()
		return run.Summary(), ctx.Err()
	}
}

// Run looks up a bulk send by id.
func (s *Sender) Run(id uuid.UUID) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}

// Shutdown cancels every running send and waits until each has stopped.
// A lead already handed to the mailer completes; later leads stay pending.
func (s *Sender) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	active := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		active = append(active, r)
	}
	s.mu.Unlock()

	for _, r := range active {
		r.Cancel()
	}
	for _, r := range active {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return fmt.Errorf("wait for run %s: %w", r.ID, ctx.Err())
		}
	}
	return nil
}

// pruneLocked forgets the oldest finished runs beyond keepRuns. Running
// runs are always kept. Callers hold s.mu.
func (s *Sender) pruneLocked() {
	finished := 0
	for _, id := range s.order {
		if s.runs[id].finished() {
			finished++
		}
	}
	if finished <= s.keepRuns {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if finished > s.keepRuns && s.runs[id].finished() {
			delete(s.runs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Runs returns the runs this sender still remembers, newest first.
func (s *Sender) Runs() []RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunSnapshot, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Snapshot())
	}
	sortSnapshots(out)
	return out
}

func (s *Sender) process(ctx context.Context, run *Run, leads []*storage.Lead, pacer Pacer, reqID string) {
	defer func() {
		run.finish(s.now())
		s.mu.Lock()
		s.pruneLocked()
		s.mu.Unlock()
		snap := run.Snapshot()
		slog.Info("bulk send finished", "runId", run.ID, "status", snap.Status,
			"sent", snap.Sent, "failed", snap.Failed, "skipped", snap.Skipped, "requestId", reqID)
		events.Emit(s.events, reqID, events.TypeSendFinished, snap)
	}()

	for _, lead := range leads {
		if err := pacer.Wait(ctx); err != nil {
			run.markCancelled()
			return
		}
		if ctx.Err() != nil {
			run.markCancelled()
			return
		}

		outcome := s.deliver(ctx, lead, run.ID, reqID)
		run.record(outcome)
		events.Emit(s.events, reqID, events.TypeSendProgress, run.Snapshot())
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

// deliver claims one pending lead and moves it through sending to sent or
// failed.
func (s *Sender) deliver(ctx context.Context, lead *storage.Lead, runID uuid.UUID, reqID string) outcome {
	cur, err := s.store.ClaimLead(ctx, lead.ID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrLeadNotFound):
			slog.Warn("lead removed before send", "id", lead.ID, "runId", runID, "requestId", reqID)
			return outcomeSkipped
		case errors.Is(err, storage.ErrLeadNotPending):
			slog.Warn("lead already claimed by another send", "id", lead.ID, "runId", runID, "requestId", reqID)
			return outcomeSkipped
		}
		slog.Error("failed to mark lead sending", "id", lead.ID, "runId", runID, "requestId", reqID, "error", err)
		metrics.RecordEmail("failed")
		return outcomeFailed
	}
	events.Emit(s.events, reqID, events.TypeLeadUpdated, cur)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	_, sendErr := s.send(sendCtx, cur)

	now := s.now()
	upd := storage.LeadUpdate{}
	result := outcomeSent
	if sendErr != nil {
		failed := storage.SendFailed
		msg := sendErr.Error()
		upd.SendStatus, upd.ErrorMessage = &failed, &msg
		result = outcomeFailed
		slog.Warn("email send failed", "id", lead.ID, "runId", runID, "requestId", reqID, "error", sendErr)
		metrics.RecordEmail("failed")
	} else {
		sent := storage.SendSent
		upd.SendStatus, upd.SentAt = &sent, &now
		metrics.RecordEmail("sent")
	}

	final, err := s.store.UpdateLead(context.WithoutCancel(ctx), lead.ID, upd)
	if err != nil {
		slog.Error("failed to record send outcome", "id", lead.ID, "runId", runID, "requestId", reqID, "error", err)
		return result
	}
	events.Emit(s.events, reqID, events.TypeLeadUpdated, final)
	return result
}

// send renders and delivers the lead's message.
func (s *Sender) send(ctx context.Context, l *storage.Lead) (*email.Result, error) {
	to := l.Address()
	if to == "" {
		return nil, ErrMissingAddress
	}
	if !l.HasMessage() {
		return nil, ErrMissingMessage
	}
	body := storage.Value(l.MessageBody)
	return s.mailer.Send(ctx, email.Message{
		To:       to,
		From:     s.identity.Email,
		FromName: s.identity.Name,
		Subject:  storage.Value(l.Subject),
		Body:     body,
		HTML:     RenderHTML(body),
	})
}

// SendTest delivers a lead's message once without touching its send status.
func (s *Sender) SendTest(ctx context.Context, id uuid.UUID) (*email.Result, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Address() == "" {
		return nil, ErrMissingAddress
	}
	if !lead.HasMessage() {
		return nil, ErrMissingMessage
	}
	if err := email.Validate(s.mailer); err != nil {
		return nil, err
	}
	res, err := s.send(ctx, lead)
	if err != nil {
		metrics.RecordEmail("test_failed")
		return nil, err
	}
	metrics.RecordEmail("test_sent")
	return res, nil
}
