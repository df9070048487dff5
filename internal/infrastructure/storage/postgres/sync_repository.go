package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"motium/internal/domain/record"
	"motium/internal/domain/sync"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

// SyncRepository реализация репозитория синхронизации для PostgreSQL
type SyncRepository struct {
	db  *Storage
	log *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(db *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		db:  db,
		log: log.With("component", "sync_repository"),
	}
}

func (r *SyncRepository) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.db.Pool().QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("select now: %w", err)
	}
	return now, nil
}

// GetSyncStatus возвращает статус синхронизации, счетчики считаются на лету
func (r *SyncRepository) GetSyncStatus(ctx context.Context, userID int) (*sync.SyncStatus, error) {
	const query = `
		SELECT s.last_sync_time, COALESCE(s.sync_version, 0), COALESCE(s.updated_at, now()),
		       (SELECT count(*) FROM records WHERE user_id = $1 AND deleted_at IS NULL),
		       (SELECT count(*) FROM devices WHERE user_id = $1)
		FROM (SELECT $1::int AS user_id) u
		LEFT JOIN sync_status s ON s.user_id = u.user_id`

	status := sync.SyncStatus{UserID: userID}
	var lastSync *time.Time

	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&lastSync,
		&status.SyncVersion,
		&status.UpdatedAt,
		&status.TotalRecords,
		&status.DeviceCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}
	if lastSync != nil {
		status.LastSyncTime = *lastSync
	}
	return &status, nil
}

// UpdateSyncStatus обновляет статус синхронизации
func (r *SyncRepository) UpdateSyncStatus(ctx context.Context, status *sync.SyncStatus) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO sync_status (user_id, last_sync_time, sync_version, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			last_sync_time = EXCLUDED.last_sync_time,
			sync_version = GREATEST(sync_status.sync_version, EXCLUDED.sync_version),
			updated_at = now()`,
		status.UserID, status.LastSyncTime, status.SyncVersion)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

func (r *SyncRepository) GetDeviceInfo(ctx context.Context, deviceID string) (*sync.DeviceInfo, error) {
	var d sync.DeviceInfo
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, name, type, user_agent, last_sync_time, created_at
		FROM devices WHERE id = $1`, deviceID).
		Scan(&d.ID, &d.UserID, &d.Name, &d.Type, &d.UserAgent, &d.LastSyncTime, &d.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, sync.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

// RegisterDevice - upsert, устройство другого пользователя не перезаписывается
func (r *SyncRepository) RegisterDevice(ctx context.Context, device *sync.DeviceInfo) error {
	tag, err := r.db.Pool().Exec(ctx, `
		INSERT INTO devices (id, user_id, name, type, user_agent, last_sync_time)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			user_agent = EXCLUDED.user_agent,
			last_sync_time = now()
		WHERE devices.user_id = EXCLUDED.user_id`,
		device.ID, device.UserID, device.Name, device.Type, device.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sync.ErrDeviceNotFound
	}
	return nil
}

func (r *SyncRepository) ListUserDevices(ctx context.Context, userID int) ([]*sync.DeviceInfo, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, user_id, name, type, user_agent, last_sync_time, created_at
		FROM devices WHERE user_id = $1 ORDER BY last_sync_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*sync.DeviceInfo
	for rows.Next() {
		var d sync.DeviceInfo
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Type, &d.UserAgent, &d.LastSyncTime, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}

func (r *SyncRepository) DeleteDevice(ctx context.Context, deviceID string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM devices WHERE id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sync.ErrDeviceNotFound
	}
	return nil
}

const syncColumns = `id, user_id, kind, payload, version, deleted_at IS NOT NULL, device_id, created_at, updated_at`

// GetRecordsForSync - дельта по updated_at, надгробия включены.
// Пустой afterID - все после since, иначе строго после пары (since, afterID).
func (r *SyncRepository) GetRecordsForSync(ctx context.Context, userID int, since time.Time, afterID string, kind record.Kind, limit int) ([]*sync.RecordSync, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT `+syncColumns+` FROM records
		WHERE user_id = $1
		  AND (updated_at > $2 OR (updated_at = $2 AND id > NULLIF($3, '')::uuid))
		  AND ($4 = '' OR kind = $4)
		ORDER BY updated_at, id
		LIMIT $5`,
		userID, since, afterID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for sync: %w", err)
	}
	defer rows.Close()

	var records []*sync.RecordSync
	for rows.Next() {
		rec, err := scanRecordSync(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SyncRepository) GetRecordByID(ctx context.Context, recordID string) (*sync.RecordSync, error) {
	rec, err := scanRecordSync(r.db.Pool().QueryRow(ctx,
		`SELECT `+syncColumns+` FROM records WHERE id = $1`, recordID))
	if err != nil {
		if isNoRows(err) {
			return nil, sync.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// SaveRecord вставляет или обновляет запись под блокировкой строки.
// Предыдущее состояние попадает в историю версий.
func (r *SyncRepository) SaveRecord(ctx context.Context, rec *sync.RecordSync) error {
	checksum := record.Checksum(rec.Kind, rec.Payload)

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var (
			curVersion  int
			curPayload  json.RawMessage
			curChecksum string
		)
		err := tx.QueryRow(ctx,
			`SELECT version, payload, checksum FROM records WHERE id = $1 FOR UPDATE`, rec.ID).
			Scan(&curVersion, &curPayload, &curChecksum)

		switch {
		case isNoRows(err):
			err = tx.QueryRow(ctx, `
				INSERT INTO records (id, user_id, kind, payload, version, checksum, device_id, deleted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, CASE WHEN $8 THEN now() END)
				ON CONFLICT (id) DO NOTHING
				RETURNING created_at, updated_at`,
				rec.ID, rec.UserID, string(rec.Kind), rec.Payload, rec.Version, checksum, rec.DeviceID, rec.Deleted,
			).Scan(&rec.CreatedAt, &rec.UpdatedAt)
			if isNoRows(err) {
				// параллельная вставка
				return sync.ErrStaleVersion
			}
			if err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("lock record: %w", err)
		}

		if curVersion >= rec.Version {
			return sync.ErrStaleVersion
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO record_versions (record_id, version, payload, checksum)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (record_id, version) DO NOTHING`,
			rec.ID, curVersion, curPayload, curChecksum); err != nil {
			return fmt.Errorf("save record version: %w", err)
		}

		err = tx.QueryRow(ctx, `
			UPDATE records SET
				payload = $2, version = $3, checksum = $4, device_id = $5, updated_at = now(),
				deleted_at = CASE WHEN $6 THEN COALESCE(deleted_at, now()) END
			WHERE id = $1
			RETURNING created_at, updated_at`,
			rec.ID, rec.Payload, rec.Version, checksum, rec.DeviceID, rec.Deleted,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		return nil
	})
}

func (r *SyncRepository) GetSyncConflicts(ctx context.Context, userID int) ([]*sync.Conflict, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT `+conflictColumns+` FROM sync_conflicts
		WHERE user_id = $1 AND NOT resolved
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*sync.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func (r *SyncRepository) GetConflictByID(ctx context.Context, conflictID int) (*sync.Conflict, error) {
	c, err := scanConflict(r.db.Pool().QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts WHERE id = $1`, conflictID))
	if err != nil {
		if isNoRows(err) {
			return nil, sync.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return c, nil
}

func (r *SyncRepository) SaveConflict(ctx context.Context, c *sync.Conflict) error {
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO sync_conflicts
			(record_id, user_id, device_id, local_payload, server_payload,
			 local_version, server_version, conflict_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		c.RecordID, c.UserID, c.DeviceID, nullJSON(c.LocalPayload), nullJSON(c.ServerPayload),
		c.LocalVersion, c.ServerVersion, string(c.ConflictType),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}
	return nil
}

func (r *SyncRepository) ResolveConflict(ctx context.Context, conflictID int, resolution string) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var userID int
		err := tx.QueryRow(ctx, `
			UPDATE sync_conflicts SET resolved = TRUE, resolution = $2, resolved_at = now()
			WHERE id = $1 AND NOT resolved
			RETURNING user_id`, conflictID, resolution).Scan(&userID)
		if err != nil {
			if isNoRows(err) {
				return sync.ErrConflictNotFound
			}
			return fmt.Errorf("failed to resolve conflict: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO sync_stats (user_id, total_resolved) VALUES ($1, 1)
			ON CONFLICT (user_id) DO UPDATE SET total_resolved = sync_stats.total_resolved + 1`,
			userID)
		return err
	})
}

func (r *SyncRepository) GetSyncStats(ctx context.Context, userID int) (*sync.SyncStats, error) {
	stats := sync.SyncStats{UserID: userID}
	var lastSync *time.Time

	err := r.db.Pool().QueryRow(ctx, `
		SELECT total_syncs, last_sync, total_uploads, total_downloads, total_conflicts, total_resolved
		FROM sync_stats WHERE user_id = $1`, userID).
		Scan(&stats.TotalSyncs, &lastSync, &stats.TotalUploads, &stats.TotalDownloads,
			&stats.TotalConflicts, &stats.TotalResolved)
	if err != nil {
		if isNoRows(err) {
			return &stats, nil
		}
		return nil, fmt.Errorf("failed to get sync stats: %w", err)
	}
	if lastSync != nil {
		stats.LastSync = *lastSync
	}
	return &stats, nil
}

func (r *SyncRepository) IncrementSyncStats(ctx context.Context, userID int, uploads, downloads, conflicts int64) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO sync_stats (user_id, total_syncs, last_sync, total_uploads, total_downloads, total_conflicts)
		VALUES ($1, 1, now(), $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total_syncs = sync_stats.total_syncs + 1,
			last_sync = now(),
			total_uploads = sync_stats.total_uploads + EXCLUDED.total_uploads,
			total_downloads = sync_stats.total_downloads + EXCLUDED.total_downloads,
			total_conflicts = sync_stats.total_conflicts + EXCLUDED.total_conflicts`,
		userID, uploads, downloads, conflicts)
	if err != nil {
		return fmt.Errorf("failed to update sync stats: %w", err)
	}
	return nil
}

const conflictColumns = `id, record_id, user_id, device_id, local_payload, server_payload,
	local_version, server_version, conflict_type, resolved, resolution, resolved_at, created_at`

func scanConflict(row pgx.Row) (*sync.Conflict, error) {
	var (
		c     sync.Conflict
		ctype string
	)
	err := row.Scan(&c.ID, &c.RecordID, &c.UserID, &c.DeviceID, &c.LocalPayload, &c.ServerPayload,
		&c.LocalVersion, &c.ServerVersion, &ctype, &c.Resolved, &c.Resolution, &c.ResolvedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ConflictType = sync.ConflictType(ctype)
	return &c, nil
}

func scanRecordSync(row pgx.Row) (*sync.RecordSync, error) {
	var (
		rec  sync.RecordSync
		kind string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &kind, &rec.Payload, &rec.Version,
		&rec.Deleted, &rec.DeviceID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = record.Kind(kind)
	return &rec, nil
}

// nullJSON - пустой payload хранится как NULL
func nullJSON(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return p
}
