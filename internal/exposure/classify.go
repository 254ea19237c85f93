package exposure

import "exposurewatch/internal/domain"

// Status is the derived resolution status of one exposure. It is never
// stored; it is recomputed from the latest synced record on every read.
type Status string

const (
	StatusActionNeeded     Status = "action-needed"
	StatusInProgress       Status = "in-progress"
	StatusAutoFixed        Status = "auto-fixed"
	StatusManuallyResolved Status = "manually-resolved"
	StatusOptOutInProgress Status = "optout-in-progress"

	// In-progress sub-states surfaced only with additional removal statuses.
	StatusRequestedRemoval       Status = "requested-removal"
	StatusWaitingForVerification Status = "waiting-for-verification"
)

// Bucket groups statuses for counting.
type Bucket uint8

const (
	BucketActionNeeded Bucket = iota
	BucketInProgress
	BucketAutoFixed
	BucketManuallyResolved
)

func (s Status) Bucket() Bucket {
	switch s {
	case StatusAutoFixed:
		return BucketAutoFixed
	case StatusManuallyResolved:
		return BucketManuallyResolved
	case StatusInProgress, StatusOptOutInProgress, StatusRequestedRemoval, StatusWaitingForVerification:
		return BucketInProgress
	}
	return BucketActionNeeded
}

// IsActionNeeded splits exposures into the two dashboard tabs. Everything
// that is not action-needed lands in the "fixed" tab, in-progress included.
func (s Status) IsActionNeeded() bool { return s == StatusActionNeeded }

// Options carries the per-subscriber facts classification depends on.
type Options struct {
	Premium                   bool
	AdditionalRemovalStatuses bool
}

// Classify maps one exposure to exactly one status.
func Classify(e Exposure, opts Options) Status {
	switch e.kind {
	case KindBreach:
		return classifyBreach(*e.breach)
	case KindScanRecord:
		return classifyRecord(*e.record, opts)
	}
	return StatusActionNeeded
}

func classifyBreach(b domain.BreachRecord) Status {
	if !b.Resolved {
		return StatusActionNeeded
	}
	if b.ResolutionReason == domain.ResolvedAutomatically {
		return StatusAutoFixed
	}
	return StatusManuallyResolved
}

func classifyRecord(r domain.ScanRecord, opts Options) Status {
	if r.ManuallyResolved {
		return StatusManuallyResolved
	}
	// Premium removals start without user action, so a fresh listing is
	// already on its way out.
	if opts.Premium && r.Status == domain.RemovalNew {
		return StatusOptOutInProgress
	}
	switch r.Status {
	case domain.RemovalRemoved:
		return StatusAutoFixed
	case domain.RemovalOptOutInProgress:
		if opts.AdditionalRemovalStatuses {
			return StatusRequestedRemoval
		}
		return StatusInProgress
	case domain.RemovalWaitingForVerification:
		if opts.AdditionalRemovalStatuses {
			return StatusWaitingForVerification
		}
		return StatusInProgress
	}
	return StatusActionNeeded
}

// Classified pairs an exposure with its status.
type Classified struct {
	Exposure
	Status Status
}

// ClassifyAll classifies every exposure, keeping order.
func ClassifyAll(exposures []Exposure, opts Options) []Classified {
	out := make([]Classified, len(exposures))
	for i, e := range exposures {
		out[i] = Classified{Exposure: e, Status: Classify(e, opts)}
	}
	return out
}

// Tab names one of the two dashboard exposure lists.
type Tab string

const (
	TabActionNeeded Tab = "action-needed"
	TabFixed        Tab = "fixed"
)

// ParseTab accepts a tab slug, falling back to def for anything unknown.
func ParseTab(s string, def Tab) Tab {
	switch Tab(s) {
	case TabActionNeeded, TabFixed:
		return Tab(s)
	}
	return def
}

// DefaultTab is the tab a subscriber lands on.
func DefaultTab(premium bool) Tab {
	if premium {
		return TabFixed
	}
	return TabActionNeeded
}

// Partition splits classified exposures into the two tabs, keeping order.
func Partition(items []Classified) (actionNeeded, fixed []Classified) {
	for _, c := range items {
		if c.Status.IsActionNeeded() {
			actionNeeded = append(actionNeeded, c)
		} else {
			fixed = append(fixed, c)
		}
	}
	return actionNeeded, fixed
}

// ForTab returns the exposures shown on tab.
func ForTab(items []Classified, tab Tab) []Classified {
	actionNeeded, fixed := Partition(items)
	if tab == TabFixed {
		return fixed
	}
	return actionNeeded
}
