package domain

// StagingEntry is an ephemeral filesystem object produced by the content
// stager. Its lifecycle is bounded by one process invocation: deleted on
// success, left in place for inspection on failure until explicit cleanup.
type StagingEntry struct {
	// Digest is the SHA-256 hex digest of the staged bytes. It becomes
	// the Document ID.
	Digest string

	// Path is the absolute staging file path, keyed by digest.
	Path string

	// Source is the descriptor the bytes were fetched from.
	Source string

	// Kind is the classified media kind.
	Kind MediaKind

	// Size is the staged byte length.
	Size int64
}
