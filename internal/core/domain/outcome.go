package domain

// OutcomeStatus classifies how an optional subsystem call ended.
type OutcomeStatus string

// Available outcome statuses.
const (
	// OutcomeOK means the subsystem call succeeded.
	OutcomeOK OutcomeStatus = "ok"

	// OutcomeDegraded means the subsystem failed and the operation continued without it.
	OutcomeDegraded OutcomeStatus = "degraded"

	// OutcomeSkipped means the subsystem was not needed.
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome reports the result of a best-effort call to an optional subsystem
// such as the vector index. Err is set only when Status is OutcomeDegraded.
type Outcome struct {
	Status OutcomeStatus
	Err    error
}

// OK returns a successful outcome.
func OK() Outcome { return Outcome{Status: OutcomeOK} }

// Skipped returns an outcome for work that was not attempted.
func Skipped() Outcome { return Outcome{Status: OutcomeSkipped} }

// Degraded returns an outcome carrying the failure that was tolerated.
func Degraded(err error) Outcome { return Outcome{Status: OutcomeDegraded, Err: err} }

// IsDegraded reports whether the subsystem failed.
func (o Outcome) IsDegraded() bool {
	return o.Status == OutcomeDegraded
}

// String returns a short human-readable form.
func (o Outcome) String() string {
	if o.Err != nil {
		return string(o.Status) + ": " + o.Err.Error()
	}
	return string(o.Status)
}
