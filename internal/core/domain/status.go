package domain

// Status is a document's pipeline stage. The processing state machine is
//
//	StatusStaged → StatusExtracted → StatusEmbedded → StatusIndexed
//
// with StatusFailed reachable from any stage and absorbing. The Indexed
// transition is the transactional one: it only happens when the metadata
// commit and the vector upsert are both durable.
type Status string

const (
	// StatusStaged means the bytes are in the staging area and the
	// content hash is known.
	StatusStaged Status = "staged"

	// StatusExtracted means at least one extraction unit was produced.
	StatusExtracted Status = "extracted"

	// StatusEmbedded means at least one unit has a vector, but the
	// dual-store commit has not completed.
	StatusEmbedded Status = "embedded"

	// StatusIndexed means metadata and vectors are both durably
	// committed. Terminal for successful documents.
	StatusIndexed Status = "indexed"

	// StatusFailed means zero usable units survived some stage.
	// Absorbing.
	StatusFailed Status = "failed"
)

// next maps each status to the statuses it may legally advance to.
var next = map[Status][]Status{
	StatusStaged:    {StatusExtracted, StatusFailed},
	StatusExtracted: {StatusEmbedded, StatusFailed},
	StatusEmbedded:  {StatusIndexed, StatusFailed},
	StatusIndexed:   {},
	StatusFailed:    {},
}

// CanTransition reports whether advancing from s to target is legal.
// Self-transitions are allowed so idempotent re-runs can re-assert the
// current stage.
func (s Status) CanTransition(target Status) bool {
	if s == target {
		return true
	}
	for _, t := range next[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(next[s]) == 0
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := next[s]
	return ok
}
