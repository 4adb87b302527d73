package session

import "sync"

type (
	// OutcomeKind classifies how a session request resolved
	OutcomeKind string

	// Outcome is the single reply delivered to the caller that started
	// a session. Exactly one Outcome is sent per Start call
	Outcome struct {
		Kind OutcomeKind
		Code string
		Err  error
	}

	// replier delivers at most one outcome to the caller. Later sends
	// are dropped so slow terminal paths cannot answer a request twice
	replier struct {
		ch   chan<- Outcome
		once sync.Once
	}
)

const (
	// OutcomeCode reports a freshly issued pairing code
	OutcomeCode OutcomeKind = "code"

	// OutcomeExported reports a successful credential export for a
	// session that never needed a pairing code
	OutcomeExported OutcomeKind = "exported"

	// OutcomeUnauthorized reports a close with a logged-out status
	OutcomeUnauthorized OutcomeKind = "unauthorized"

	// OutcomeNoCreds reports a stable connection with no credential
	// file on disk
	OutcomeNoCreds OutcomeKind = "no_creds"

	// OutcomePairFailed reports a failed pairing-code request
	OutcomePairFailed OutcomeKind = "pair_failed"

	// OutcomeInitFailed reports a failure before the client produced
	// any connection events
	OutcomeInitFailed OutcomeKind = "init_failed"

	// OutcomeExhausted reports that every reconnect attempt was used up
	OutcomeExhausted OutcomeKind = "exhausted"

	// OutcomeExportFailed reports a failed upload or notification
	OutcomeExportFailed OutcomeKind = "export_failed"

	// OutcomeAborted reports a session cut short by shutdown
	OutcomeAborted OutcomeKind = "aborted"
)

func newReplier(ch chan<- Outcome) *replier {
	return &replier{ch: ch}
}

// Send delivers the outcome if none has been sent yet and reports
// whether this call was the one that delivered
func (r *replier) Send(out Outcome) bool {
	delivered := false
	r.once.Do(func() {
		r.ch <- out
		close(r.ch)
		delivered = true
	})
	return delivered
}
