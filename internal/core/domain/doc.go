// Package domain defines the core business entities for the Librarian.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested document, identified by its content hash
//   - ExtractionUnit: One text or image fragment derived from a document
//   - Embedding: A fixed-dimension vector for one extraction unit
//   - Snapshot: A point-in-time backup of both stores plus the library
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
