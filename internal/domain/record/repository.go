package record

import (
	"context"
	"time"
)

type Repository interface {
	// List возвращает неудаленные записи, пустой kind - все типы
	List(ctx context.Context, userID int, kind Kind) ([]Record, error)
	// Get возвращает запись вместе с удаленными
	Get(ctx context.Context, userID int, id string) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	// Update сохраняет запись, если текущая версия равна expectedVersion
	Update(ctx context.Context, rec *Record, expectedVersion int) error
	SoftDelete(ctx context.Context, userID int, id string) (*Record, error)
	// GetModifiedSince возвращает записи, включая удаленные, с updated_at > since
	GetModifiedSince(ctx context.Context, userID int, since time.Time) ([]Record, error)

	SaveVersion(ctx context.Context, version *Version) error
	GetVersions(ctx context.Context, recordID string) ([]Version, error)
}
