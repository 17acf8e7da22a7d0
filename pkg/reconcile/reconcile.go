// Package reconcile implements the merge policies for managed artifacts.
//
// Every entry point is a pure function of (existing, fetched) content.
// The common contract: a fetched artifact never clobbers user-owned state,
// and a parse failure always degrades to "preserve existing, warn" rather
// than propagating past the artifact boundary.
package reconcile

// Outcome is the terminal state of reconciling one managed artifact
type Outcome string

const (
	// OutcomeSkipped means policy left the existing file untouched
	OutcomeSkipped Outcome = "skipped"

	// OutcomeWritten means the fetched content was written as-is
	OutcomeWritten Outcome = "written"

	// OutcomeMerged means fetched and existing content were combined
	OutcomeMerged Outcome = "merged"

	// OutcomeFailedSoft means the merge failed and the existing file
	// was preserved; a warning is surfaced, never an error
	OutcomeFailedSoft Outcome = "failed-soft"
)

// Changed reports whether the outcome requires a destination write
func (o Outcome) Changed() bool {
	return o == OutcomeWritten || o == OutcomeMerged
}
