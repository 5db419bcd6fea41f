// Package repositories defines the persistence contracts for mock tests,
// section results and exam content.
package repositories

import "context"

// Repository aggregates the sub-repositories behind one handle.
type Repository interface {
	MockTest() MockTestRepository
	SectionResult() SectionResultRepository
	Content() ContentRepository

	// WithTransaction executes fn with a Repository bound to a single
	// database transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Ping checks the health of the underlying connections.
	Ping(ctx context.Context) error

	// Close closes the underlying connections.
	Close() error
}
