package docstream

import (
	"strconv"
)

// Outcome is the successful outcome of a Run.
type Outcome int

const (
	outcomeUnknown Outcome = 0

	// OutcomeProcessed indicates events were dispatched.
	OutcomeProcessed Outcome = 1

	// OutcomeNoEvents indicates there was nothing new to dispatch.
	OutcomeNoEvents Outcome = 2

	// OutcomeCanaryApplied indicates a position was bootstrapped and no
	// events followed it yet.
	OutcomeCanaryApplied Outcome = 3

	outcomeSentinel Outcome = 4
)

// Valid returns true if the outcome is a known outcome.
func (o Outcome) Valid() bool {
	return o > outcomeUnknown && o < outcomeSentinel
}

// Result is returned by a successful Run.
type Result struct {
	Outcome Outcome
	Count   int
}

// Code returns the invocation result code: 200 when events were processed,
// 201 when there were no events and 202 when only the canary was applied.
func (r Result) Code() int {
	switch r.Outcome {
	case OutcomeProcessed:
		return 200
	case OutcomeNoEvents:
		return 201
	case OutcomeCanaryApplied:
		return 202
	default:
		return 0
	}
}

// Detail returns a human readable description of the result.
func (r Result) Detail() string {
	switch r.Outcome {
	case OutcomeProcessed:
		return strconv.Itoa(r.Count) + " records processed successfully."
	case OutcomeCanaryApplied:
		return "Canary applied. No records to process."
	case OutcomeNoEvents:
		return "No records to process."
	default:
		return "Unknown result."
	}
}
