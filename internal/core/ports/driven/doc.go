// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Fetcher: Streams raw bytes for a source descriptor
//   - Extractor / ExtractorRegistry: Turns staged content into extraction units
//   - MetadataStore: Document and unit persistence (SQLite)
//   - VectorIndex: Vector storage and similarity search (SQLite file)
//   - TextEmbedder: Text-to-vector model collaborator
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ImageEmbedder: Without it, image units are recorded but not indexed
//     and image queries are rejected.
//   - OCREngine: Without it, image-only PDF pages become failed units.
//   - ArchiveExtractor: Without it, archive inputs are rejected.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or storage package
package driven
