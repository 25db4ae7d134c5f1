package verifier

// Status classifies how a flow ended.
type Status int

const (
	// StatusSuccess means the flow completed.
	StatusSuccess Status = iota
	// StatusFailure means the flow was rejected or failed for a known reason.
	StatusFailure
	// StatusError means the flow hit an unclassified error.
	StatusError
)

// Reasons reported with failures.
const (
	ReasonNameRequired   = "name required"
	ReasonNameTooLong    = "name too long"
	ReasonNameInUse      = "name in use"
	ReasonAssetNotFound  = "asset not found"
	ReasonUnknownAccount = "unknown account"
	ReasonTimeout        = "timeout"
)

// Result is the outcome of a create or login flow. Payload is set on success,
// Reason otherwise.
type Result struct {
	Status  Status
	Payload string
	Reason  string
}

// Succeeded builds a successful result.
func Succeeded(payload string) Result {
	return Result{Status: StatusSuccess, Payload: payload}
}

// Failed builds a failure with a human readable reason.
func Failed(reason string) Result {
	return Result{Status: StatusFailure, Reason: reason}
}

// Errored builds an unclassified failure from err.
func Errored(err error) Result {
	return Result{Status: StatusError, Reason: err.Error()}
}

// OK reports whether the flow succeeded.
func (r Result) OK() bool { return r.Status == StatusSuccess }
