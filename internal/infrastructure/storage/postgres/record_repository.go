package postgres

import (
	"context"
	"fmt"
	"time"

	"motium/internal/domain/record"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

const recordColumns = `id, user_id, kind, payload, version, checksum, device_id, created_at, updated_at, deleted_at`

type RecordRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewRecordRepository(db *Storage, log *slog.Logger) *RecordRepository {
	return &RecordRepository{
		db:  db,
		log: log.With("component", "record_repository"),
	}
}

func (r *RecordRepository) List(ctx context.Context, userID int, kind record.Kind) ([]record.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE user_id = $1 AND deleted_at IS NULL AND ($2 = '' OR kind = $2)
		ORDER BY updated_at DESC, id`

	rows, err := r.db.Pool().Query(ctx, query, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return scanRecords(rows)
}

func (r *RecordRepository) Get(ctx context.Context, userID int, id string) (*record.Record, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1 AND user_id = $2`, id, userID)

	rec, err := scanRecord(row)
	if err != nil {
		if isNoRows(err) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *record.Record) error {
	err := r.db.Pool().QueryRow(ctx,
		`INSERT INTO records (id, user_id, kind, payload, version, checksum, device_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		rec.ID, rec.UserID, string(rec.Kind), rec.Payload, rec.Version, rec.Checksum, rec.DeviceID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return record.ErrAlreadyExists
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update - оптимистичная блокировка по версии
func (r *RecordRepository) Update(ctx context.Context, rec *record.Record, expectedVersion int) error {
	err := r.db.Pool().QueryRow(ctx,
		`UPDATE records SET payload = $1, version = $2, checksum = $3, device_id = $4, updated_at = now()
		 WHERE id = $5 AND user_id = $6 AND version = $7 AND deleted_at IS NULL
		 RETURNING updated_at`,
		rec.Payload, rec.Version, rec.Checksum, rec.DeviceID, rec.ID, rec.UserID, expectedVersion,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return record.ErrVersionConflict
		}
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// SoftDelete ставит надгробие и повышает версию, чтобы удаление дошло до устройств
func (r *RecordRepository) SoftDelete(ctx context.Context, userID int, id string) (*record.Record, error) {
	row := r.db.Pool().QueryRow(ctx,
		`UPDATE records SET deleted_at = now(), updated_at = now(), version = version + 1
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		 RETURNING `+recordColumns,
		id, userID)

	rec, err := scanRecord(row)
	if err != nil {
		if isNoRows(err) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("soft delete record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) GetModifiedSince(ctx context.Context, userID int, since time.Time) ([]record.Record, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE user_id = $1 AND updated_at > $2
		 ORDER BY updated_at, id`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("get modified records: %w", err)
	}
	return scanRecords(rows)
}

func (r *RecordRepository) SaveVersion(ctx context.Context, v *record.Version) error {
	err := r.db.Pool().QueryRow(ctx,
		`INSERT INTO record_versions (record_id, version, payload, checksum)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (record_id, version) DO UPDATE SET record_id = EXCLUDED.record_id
		 RETURNING id, created_at`,
		v.RecordID, v.Version, v.Payload, v.Checksum,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("save record version: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetVersions(ctx context.Context, recordID string) ([]record.Version, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, record_id, version, payload, checksum, created_at
		 FROM record_versions WHERE record_id = $1 ORDER BY version DESC`,
		recordID)
	if err != nil {
		return nil, fmt.Errorf("get record versions: %w", err)
	}
	defer rows.Close()

	var versions []record.Version
	for rows.Next() {
		var v record.Version
		if err := rows.Scan(&v.ID, &v.RecordID, &v.Version, &v.Payload, &v.Checksum, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		rec  record.Record
		kind string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &kind, &rec.Payload, &rec.Version,
		&rec.Checksum, &rec.DeviceID, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = record.Kind(kind)
	return &rec, nil
}

func scanRecords(rows pgx.Rows) ([]record.Record, error) {
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
