package unitofwork

import "context"

// RepositoryFactory hands out units of work over the catalog database.
// Services hold the factory, never a unit of work.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
