package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/hansbyte/pairgate/internal/authstate"
	"github.com/hansbyte/pairgate/internal/client"
	"github.com/hansbyte/pairgate/internal/export"
	"github.com/hansbyte/pairgate/internal/observability"
	"github.com/hansbyte/pairgate/internal/util"
	"github.com/hansbyte/pairgate/pkg/api"
	"github.com/hansbyte/pairgate/pkg/log"
)

type (
	// Config carries the orchestration knobs
	Config struct {
		SessionRoot    string
		ClientName     string
		ProtocolDomain string
		PairDelay      time.Duration
		StabilizeDelay time.Duration
		Retry          api.RetryConfig
	}

	// Orchestrator drives pairing sessions from code request through
	// credential export. Each Start call owns its session directory and
	// protocol client for the lifetime of the request
	Orchestrator struct {
		cfg      Config
		factory  client.Factory
		exporter *export.Exporter
		hub      *Hub
		logger   *slog.Logger

		mu     sync.Mutex
		active map[api.SessionID]string

		baseCtx context.Context
		cancel  context.CancelFunc
		wg      sync.WaitGroup
	}

	// runner owns one session request end to end
	runner struct {
		o       *Orchestrator
		id      api.SessionID
		dir     string
		reply   *replier
		logger  *slog.Logger
		status  api.SessionStatus
		retries int
	}

	// attemptResult reports how one connection attempt ended. A nil
	// outcome means a retryable close
	attemptResult struct {
		outcome     *Outcome
		preserveDir bool
		statusCode  int
	}
)

const eventBufferSize = 16

var (
	// ErrSessionActive is returned when a session id already has a
	// request in flight
	ErrSessionActive = errors.New("session already active")

	// ErrShuttingDown is returned for sessions started after Shutdown
	ErrShuttingDown = errors.New("orchestrator shutting down")
)

// New creates an Orchestrator. The factory builds one protocol client
// per connection attempt
func New(
	cfg Config, factory client.Factory, exporter *export.Exporter,
	hub *Hub, logger *slog.Logger,
) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		factory:  factory,
		exporter: exporter,
		hub:      hub,
		logger:   logger,
		active:   map[api.SessionID]string{},
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Dir returns the on-disk directory holding a session's state
func (o *Orchestrator) Dir(id api.SessionID) string {
	return filepath.Join(o.cfg.SessionRoot, string(id))
}

// Start launches a pairing session for the given id. The returned
// channel delivers exactly one Outcome and is then closed; a caller
// that goes away can abandon the channel without stalling the session
func (o *Orchestrator) Start(id api.SessionID) (<-chan Outcome, error) {
	dir := o.Dir(id)
	if err := o.register(id, dir); err != nil {
		return nil, err
	}

	// state left behind by an earlier run would pair against stale
	// credentials, so every request starts from an empty directory
	util.RemovePath(o.logger, dir)

	out := make(chan Outcome, 1)
	o.wg.Add(1)
	go o.run(id, dir, out)
	return out, nil
}

// ActiveCount reports how many sessions are currently running
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Shutdown stops accepting new sessions, waits for running ones to
// finish, and sweeps any session directories still registered
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, dir := range o.active {
		util.RemovePath(o.logger, dir)
		delete(o.active, id)
	}
	return err
}

func (o *Orchestrator) register(id api.SessionID, dir string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.baseCtx.Err() != nil {
		return ErrShuttingDown
	}
	if _, ok := o.active[id]; ok {
		return fmt.Errorf("%w: %s", ErrSessionActive, id)
	}
	o.active[id] = dir
	observability.SetActiveSessions(len(o.active))
	return nil
}

func (o *Orchestrator) deregister(id api.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
	observability.SetActiveSessions(len(o.active))
}

func (o *Orchestrator) run(
	id api.SessionID, dir string, out chan<- Outcome,
) {
	defer o.wg.Done()

	r := &runner{
		o:      o,
		id:     id,
		dir:    dir,
		reply:  newReplier(out),
		logger: o.logger.With(log.SessionID(id)),
		status: api.SessionPending,
	}

	r.logger.Info("session started", log.Path(dir))
	observability.RecordSessionStarted()
	r.publish(api.SessionEvent{Type: api.EventTypeSessionStarted})

	r.finish(r.execute())
}

// execute runs connection attempts until one ends the session or the
// retry budget is spent
func (r *runner) execute() *attemptResult {
	for {
		res := r.attempt()
		if res.outcome != nil {
			return res
		}

		r.retries++
		observability.RecordReconnect()
		if r.retries >= r.o.cfg.Retry.MaxRetries {
			return &attemptResult{
				outcome:    &Outcome{Kind: OutcomeExhausted},
				statusCode: res.statusCode,
			}
		}

		delay := Backoff(r.o.cfg.Retry, r.retries-1)
		r.logger.Warn("connection closed, retrying",
			log.Attempt(r.retries),
			log.StatusCode(res.statusCode))
		r.publish(api.SessionEvent{
			Type:       api.EventTypeRetryScheduled,
			Attempt:    r.retries,
			StatusCode: res.statusCode,
		})

		select {
		case <-time.After(delay):
		case <-r.o.baseCtx.Done():
			return abortResult(r.o.baseCtx.Err())
		}
	}
}

// attempt builds a fresh client against the session's current state and
// follows it until export, a close, or a failure. The client is always
// closed before the next attempt dials
func (r *runner) attempt() *attemptResult {
	ctx := r.o.baseCtx

	st, persist, err := authstate.Acquire(r.dir)
	if err != nil {
		return initFailure(err)
	}

	cli, err := r.o.factory(client.Config{
		State:      st,
		Persist:    persist,
		Dir:        r.dir,
		ClientName: r.o.cfg.ClientName,
		Log:        r.logger,
	})
	if err != nil {
		return initFailure(err)
	}
	defer func() {
		_ = cli.Close()
	}()

	events := make(chan client.Event, eventBufferSize)
	cli.SetHandler(client.HandlerFunc(func(e client.Event) {
		select {
		case events <- e:
		default:
		}
	}))

	if err := cli.Connect(ctx); err != nil {
		return initFailure(err)
	}

	var stabilized <-chan time.Time
	if !st.Registered {
		if res := r.settle(ctx, persist, events, &stabilized); res != nil {
			return res
		}

		code, err := cli.PairingCode(ctx, string(r.id))
		if err != nil {
			return &attemptResult{
				outcome: &Outcome{Kind: OutcomePairFailed, Err: err},
			}
		}
		r.issueCode(code)
	}

	return r.await(ctx, cli, persist, events, stabilized)
}

// settle waits out the pre-pairing delay, still reacting to events that
// arrive while the transport warms up. A close here decides the attempt
// before a code is ever requested
func (r *runner) settle(
	ctx context.Context, persist authstate.PersistFunc,
	events <-chan client.Event, stabilized *<-chan time.Time,
) *attemptResult {
	deadline := time.After(r.o.cfg.PairDelay)
	for {
		select {
		case <-deadline:
			return nil
		case e := <-events:
			if res := r.handleEvent(e, persist, stabilized); res != nil {
				return res
			}
		case <-ctx.Done():
			return abortResult(ctx.Err())
		}
	}
}

func (r *runner) issueCode(code string) {
	r.transition(api.SessionCodeIssued)
	if r.reply.Send(Outcome{Kind: OutcomeCode, Code: code}) {
		r.logger.Info("pairing code issued")
	} else {
		r.logger.Info("pairing code reissued", log.Attempt(r.retries))
	}
	r.publish(api.SessionEvent{
		Type: api.EventTypeCodeIssued,
		Code: code,
	})
}

// await drains client events until the connection either closes or
// holds open long enough to be considered stable, then exports
func (r *runner) await(
	ctx context.Context, cli client.Client, persist authstate.PersistFunc,
	events <-chan client.Event, stabilized <-chan time.Time,
) *attemptResult {
	for {
		select {
		case <-ctx.Done():
			return abortResult(ctx.Err())

		case e := <-events:
			if res := r.handleEvent(e, persist, &stabilized); res != nil {
				return res
			}

		case <-stabilized:
			return r.export(ctx, cli)
		}
	}
}

// handleEvent applies one client event. A non-nil result ends the
// attempt; arming the stabilized timer marks the connection as open
func (r *runner) handleEvent(
	e client.Event, persist authstate.PersistFunc,
	stabilized *<-chan time.Time,
) *attemptResult {
	switch e.Kind {
	case client.EventCredentials:
		if err := persist(); err != nil {
			r.logger.Warn("failed to persist credentials", log.Error(err))
			return nil
		}
		r.publish(api.SessionEvent{Type: api.EventTypeCredentialsSaved})

	case client.EventConnection:
		switch e.State {
		case client.ConnOpen:
			r.transition(api.SessionConnected)
			r.logger.Info("connection open")
			r.publish(api.SessionEvent{Type: api.EventTypeConnectionOpen})
			*stabilized = time.After(r.o.cfg.StabilizeDelay)

		case client.ConnClosed:
			status, ok := client.CloseStatus(e.Reason)
			r.publish(api.SessionEvent{
				Type:       api.EventTypeConnectionClosed,
				StatusCode: status,
			})
			if ok && client.IsLoggedOut(status) {
				return &attemptResult{
					outcome:    &Outcome{Kind: OutcomeUnauthorized},
					statusCode: status,
				}
			}
			return &attemptResult{statusCode: status}
		}
	}
	return nil
}

func (r *runner) export(
	ctx context.Context, cli client.Client,
) *attemptResult {
	if !authstate.Exists(r.dir) {
		return &attemptResult{
			outcome:     &Outcome{Kind: OutcomeNoCreds},
			preserveDir: true,
		}
	}

	to := client.NewJID(string(r.id), r.o.cfg.ProtocolDomain)
	start := time.Now()
	_, err := r.o.exporter.Run(ctx, cli, authstate.CredsPath(r.dir), to)
	if err != nil {
		return &attemptResult{
			outcome: &Outcome{Kind: OutcomeExportFailed, Err: err},
		}
	}
	observability.ObserveExportDuration(time.Since(start))

	return &attemptResult{outcome: &Outcome{Kind: OutcomeExported}}
}

// finish delivers the outcome, publishes the terminal event, and
// releases the session's directory and registration
func (r *runner) finish(res *attemptResult) {
	out := *res.outcome
	delivered := r.reply.Send(out)

	status, evType := terminalFor(out.Kind)
	r.transition(status)

	ev := api.SessionEvent{Type: evType, StatusCode: res.statusCode}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	r.publish(ev)
	observability.RecordSessionOutcome(string(out.Kind))

	if res.preserveDir {
		r.logger.Warn("no credential file after stable connection, "+
			"session directory left in place", log.Path(r.dir))
	} else {
		util.RemovePath(r.logger, r.dir)
	}
	r.o.deregister(r.id)

	switch {
	case out.Kind == OutcomeExported:
		r.logger.Info("session exported")
	case delivered:
		r.logger.Warn("session failed",
			log.Status(out.Kind), log.Error(out.Err))
	default:
		r.logger.Warn("session failed after response was sent",
			log.Status(out.Kind), log.Error(out.Err))
	}
}

func (r *runner) transition(next api.SessionStatus) bool {
	if !sessionTransitions.CanTransition(r.status, next) {
		return false
	}
	r.status = next
	return true
}

func (r *runner) publish(ev api.SessionEvent) {
	ev.SessionID = r.id
	ev.Status = r.status
	ev.Timestamp = time.Now().UnixMilli()
	r.o.hub.Publish(ev)
}

func terminalFor(kind OutcomeKind) (api.SessionStatus, api.EventType) {
	switch kind {
	case OutcomeExported:
		return api.SessionExported, api.EventTypeSessionExported
	case OutcomeUnauthorized:
		return api.SessionUnauthorized, api.EventTypeSessionFailed
	default:
		return api.SessionFailed, api.EventTypeSessionFailed
	}
}

func initFailure(err error) *attemptResult {
	return &attemptResult{
		outcome: &Outcome{Kind: OutcomeInitFailed, Err: err},
	}
}

func abortResult(err error) *attemptResult {
	return &attemptResult{
		outcome: &Outcome{Kind: OutcomeAborted, Err: err},
	}
}
