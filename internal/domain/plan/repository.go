package plan

import (
	"context"
)

// Repository resolves plans from the catalog
type Repository interface {
	Get(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
}
