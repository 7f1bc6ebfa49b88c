package model

// NavigationRequest is a tagged request issued by the learner or a harness.
// Requests are stateless inputs; they do not persist.
type NavigationRequest string

const (
	RequestStart      NavigationRequest = "start"
	RequestResumeAll  NavigationRequest = "resume_all"
	RequestContinue   NavigationRequest = "continue"
	RequestPrevious   NavigationRequest = "previous"
	RequestChoice     NavigationRequest = "choice"
	RequestRetry      NavigationRequest = "retry"
	RequestRetryAll   NavigationRequest = "retry_all"
	RequestExit       NavigationRequest = "exit"
	RequestExitAll    NavigationRequest = "exit_all"
	RequestSuspendAll NavigationRequest = "suspend_all"
	RequestAbandon    NavigationRequest = "abandon"
	RequestAbandonAll NavigationRequest = "abandon_all"
)

// ValidRequests defines the closed navigation request vocabulary.
var ValidRequests = map[NavigationRequest]bool{
	RequestStart:      true,
	RequestResumeAll:  true,
	RequestContinue:   true,
	RequestPrevious:   true,
	RequestChoice:     true,
	RequestRetry:      true,
	RequestRetryAll:   true,
	RequestExit:       true,
	RequestExitAll:    true,
	RequestSuspendAll: true,
	RequestAbandon:    true,
	RequestAbandonAll: true,
}

// RejectionReason is the machine-readable reason attached to an unsatisfiable
// navigation request. Callers and tests assert on why navigation failed,
// never just that it failed.
type RejectionReason string

const (
	ReasonNoMoreActivities RejectionReason = "no-more-activities"
	ReasonChoiceNotAllowed RejectionReason = "choice-not-allowed"
	ReasonFlowDisabled     RejectionReason = "flow-disabled"
	ReasonStopForward      RejectionReason = "stop-forward-traversal"
	ReasonInvalidState     RejectionReason = "invalid-session-state"
	ReasonNotSuspended     RejectionReason = "nothing-suspended"
	ReasonUnknownActivity  RejectionReason = "unknown-activity"
	ReasonNoCurrent        RejectionReason = "no-current-activity"
)

// NavigationResult is the outcome of processing one navigation request.
// Success with a target means the target became current; success without a
// target means the request ended or suspended the session without delivery.
type NavigationResult struct {
	Success  bool              `json:"success"`
	TargetID string            `json:"target_id,omitempty"`
	Reason   RejectionReason   `json:"reason,omitempty"`
	Request  NavigationRequest `json:"request"`
	// Redirected records the post-condition action that rewrote the caller's
	// request, when one did.
	Redirected RuleAction `json:"redirected,omitempty"`
}

// Rejected constructs a failed result for a request.
func Rejected(req NavigationRequest, reason RejectionReason) NavigationResult {
	return NavigationResult{Request: req, Reason: reason}
}

// SessionPhase is the lifecycle state of a sequencing session.
type SessionPhase string

const (
	PhaseNotStarted SessionPhase = "not_started"
	PhaseActive     SessionPhase = "active"
	PhaseSuspended  SessionPhase = "suspended"
	PhaseEnded      SessionPhase = "ended"
)

// NavigationValidity reports which requests would currently succeed, computed
// without mutating session state. Choice validity is per reachable target.
type NavigationValidity struct {
	Start      bool            `json:"start"`
	ResumeAll  bool            `json:"resume_all"`
	Continue   bool            `json:"continue"`
	Previous   bool            `json:"previous"`
	Choice     map[string]bool `json:"choice,omitempty"`
	SuspendAll bool            `json:"suspend_all"`
}
