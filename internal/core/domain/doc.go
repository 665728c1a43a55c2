// Package domain defines the core business entities for afrisam.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Opportunity: A deduplicated contract opportunity in an African country
//   - Watermark: The last durably committed sync
//   - BootstrapProgress: How far a historical load got
//   - RawRow / Extract: Unnormalised input from the source fetcher
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
