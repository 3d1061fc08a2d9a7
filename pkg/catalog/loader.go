package catalog

import (
	"context"
	"fmt"
)

// InstitutionLister supplies institution names for the enumeration
type InstitutionLister interface {
	ListInstitutionNames(ctx context.Context) ([]string, error)
}

// Load builds the descriptor from catalog metadata stored in the database
func Load(ctx context.Context, lister InstitutionLister) (*SchemaDescriptor, error) {
	names, err := lister.ListInstitutionNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load institutions: %w", err)
	}
	return NewDescriptor(names), nil
}
