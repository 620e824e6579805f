package alertlog

import (
	"context"
)

// Repository stores alert dedup records. Create with a duplicate
// (license, kind, cycle key) triple returns ErrAlreadyExists, enforced by a
// storage-level unique constraint so concurrent job runs cannot double-send.
type Repository interface {
	Create(ctx context.Context, log *AlertLog) error
	Exists(ctx context.Context, licenseID, kind, cycleKey string) (bool, error)
}
