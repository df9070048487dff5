package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"motium/internal/domain/record"
	domainsync "motium/internal/domain/sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"
)

// фиксированная ширина, чтобы строки сравнивались как время
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = `id, kind, payload, version, sync_status, deleted, created_at, updated_at, server_updated_at`

type SQLiteStorage struct {
	db    *sql.DB
	queue *Queue
	log   *slog.Logger
	now   func() time.Time
}

func NewSQLiteStorage(path string, queueCfg QueueConfig, log *slog.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// один писатель, транзакции не конкурируют за файл
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:    db,
		queue: NewQueue(db, queueCfg),
		log:   log.With("component", "local_storage"),
		now:   time.Now,
	}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			sync_status TEXT NOT NULL DEFAULT 'pending',
			deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			server_updated_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, deleted);
		CREATE INDEX IF NOT EXISTS idx_records_status ON records(sync_status);

		CREATE TABLE IF NOT EXISTS pending_operations (
			record_id TEXT PRIMARY KEY,
			op TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pending_next ON pending_operations(next_attempt_at);

		CREATE TABLE IF NOT EXISTS sync_conflicts (
			record_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			local_payload TEXT,
			local_version INTEGER NOT NULL,
			local_deleted INTEGER NOT NULL DEFAULT 0,
			server_payload TEXT,
			server_version INTEGER NOT NULL,
			server_deleted INTEGER NOT NULL DEFAULT 0,
			server_updated_at TEXT NOT NULL,
			server_conflict_id INTEGER NOT NULL DEFAULT 0,
			conflict_type TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sync_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);
	`)

	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Queue возвращает очередь отложенных операций над этой же базой
func (s *SQLiteStorage) Queue() *Queue {
	return s.queue
}

// Create сохраняет новую запись локально и ставит ее в очередь на отправку
func (s *SQLiteStorage) Create(ctx context.Context, kind record.Kind, payload json.RawMessage) (*Record, error) {
	now := s.now()
	rec := &Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		Version:    1,
		SyncStatus: StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return err
		}
		_, err := s.queue.enqueue(ctx, tx, rec.ID, OpCreate, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания записи: %w", err)
	}

	s.log.Debug("запись создана локально", "record_id", rec.ID, "kind", kind)
	return rec, nil
}

// Update меняет содержимое записи; версия растет один раз за цикл синхронизации
func (s *SQLiteStorage) Update(ctx context.Context, id string, payload json.RawMessage) (*Record, error) {
	var rec *Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case rec.Deleted:
			return ErrRecordDeleted
		case rec.SyncStatus == StatusConflict:
			return ErrRecordInConflict
		case rec.SyncStatus == StatusSynced:
			rec.Version++
		}

		rec.Payload = payload
		rec.SyncStatus = StatusPending
		rec.UpdatedAt = s.now()
		if err := updateRecord(ctx, tx, rec); err != nil {
			return err
		}
		_, err = s.queue.enqueue(ctx, tx, id, OpUpdate, rec.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete помечает запись удаленной. Запись, которую сервер еще не видел, удаляется сразу.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Deleted {
			return nil
		}
		if rec.SyncStatus == StatusConflict {
			return ErrRecordInConflict
		}

		now := s.now()
		op, err := s.queue.enqueue(ctx, tx, id, OpDelete, now)
		if err != nil {
			return err
		}
		if op == opDropped {
			return purgeRecord(ctx, tx, id)
		}

		if rec.SyncStatus == StatusSynced {
			rec.Version++
		}
		rec.Deleted = true
		rec.SyncStatus = StatusPending
		rec.UpdatedAt = now
		return updateRecord(ctx, tx, rec)
	})
}

// Get возвращает неудаленную запись
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := getRecord(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Lookup возвращает запись вместе с надгробиями
func (s *SQLiteStorage) Lookup(ctx context.Context, id string) (*Record, error) {
	return getRecord(ctx, s.db, id)
}

// List возвращает неудаленные записи, пустой kind - все типы
func (s *SQLiteStorage) List(ctx context.Context, kind record.Kind) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE deleted = 0 AND (? = '' OR kind = ?)
		ORDER BY created_at DESC, id`, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Counts - количество записей по статусу синхронизации
func (s *SQLiteStorage) Counts(ctx context.Context) (map[SyncStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM records GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета записей: %w", err)
	}
	defer rows.Close()

	counts := map[SyncStatus]int{StatusSynced: 0, StatusPending: 0, StatusConflict: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка подсчета записей: %w", err)
		}
		counts[SyncStatus(status)] = n
	}
	return counts, rows.Err()
}

// ApplyServer принимает серверную копию как есть: надгробие удаляет запись локально
func (s *SQLiteStorage) ApplyServer(ctx context.Context, rs domainsync.RecordSync) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.applyServerTx(ctx, tx, rs)
	})
}

func (s *SQLiteStorage) applyServerTx(ctx context.Context, tx *sql.Tx, rs domainsync.RecordSync) error {
	if err := s.queue.remove(ctx, tx, rs.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_conflicts WHERE record_id = ?`, rs.ID); err != nil {
		return fmt.Errorf("ошибка удаления конфликта: %w", err)
	}
	if rs.Deleted {
		return purgeRecord(ctx, tx, rs.ID)
	}

	serverTime := rs.UpdatedAt
	rec := &Record{
		ID:              rs.ID,
		Kind:            rs.Kind,
		Payload:         rs.Payload,
		Version:         rs.Version,
		SyncStatus:      StatusSynced,
		CreatedAt:       rs.CreatedAt,
		UpdatedAt:       rs.UpdatedAt,
		ServerUpdatedAt: &serverTime,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rs.UpdatedAt
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			sync_status = excluded.sync_status,
			deleted = 0,
			updated_at = excluded.updated_at,
			server_updated_at = excluded.server_updated_at`,
		rec.ID, string(rec.Kind), string(rec.Payload), rec.Version, string(rec.SyncStatus),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), formatTime(serverTime))
	if err != nil {
		return fmt.Errorf("ошибка сохранения серверной записи: %w", err)
	}
	return nil
}

// Acknowledge фиксирует принятую сервером запись. sent - то, что было отправлено.
// Если запись успели изменить после отправки, она остается в очереди поверх новой серверной версии.
func (s *SQLiteStorage) Acknowledge(ctx context.Context, sent *Record, version int, serverTime time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getRecord(ctx, tx, sent.ID)
		if errors.Is(err, ErrNotFound) {
			if sent.Deleted {
				return s.queue.remove(ctx, tx, sent.ID)
			}
			return s.reviveTombstone(ctx, tx, sent, version, serverTime)
		}
		if err != nil {
			return err
		}

		if current.UpdatedAt.Equal(sent.UpdatedAt) {
			if err := s.queue.remove(ctx, tx, sent.ID); err != nil {
				return err
			}
			if current.Deleted {
				return purgeRecord(ctx, tx, sent.ID)
			}
			current.Version = version
			current.SyncStatus = StatusSynced
			current.ServerUpdatedAt = &serverTime
			return updateRecord(ctx, tx, current)
		}

		// сервер уже знает запись, create превращается в update
		current.Version = version + 1
		current.ServerUpdatedAt = &serverTime
		if err := updateRecord(ctx, tx, current); err != nil {
			return err
		}
		return s.queue.rebase(ctx, tx, sent.ID)
	})
}

// reviveTombstone восстанавливает удаление записи, стертой локально, пока ее create был в пути:
// сервер запись уже принял, поэтому удаление отправляется поверх его версии
func (s *SQLiteStorage) reviveTombstone(ctx context.Context, tx *sql.Tx, sent *Record, version int, serverTime time.Time) error {
	now := s.now()
	tomb := &Record{
		ID:              sent.ID,
		Kind:            sent.Kind,
		Payload:         sent.Payload,
		Version:         version + 1,
		SyncStatus:      StatusPending,
		Deleted:         true,
		CreatedAt:       sent.CreatedAt,
		UpdatedAt:       now,
		ServerUpdatedAt: &serverTime,
	}
	if err := insertRecord(ctx, tx, tomb); err != nil {
		return err
	}
	s.log.Debug("удаление записи отправится повторно", "record_id", sent.ID, "version", tomb.Version)
	return s.queue.replace(ctx, tx, sent.ID, OpDelete, now)
}

// SaveConflict сохраняет серверную копию для ручного решения и блокирует запись
func (s *SQLiteStorage) SaveConflict(ctx context.Context, c Conflict) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sync_conflicts (
				record_id, kind, local_payload, local_version, local_deleted,
				server_payload, server_version, server_deleted, server_updated_at,
				server_conflict_id, conflict_type, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.RecordID, string(c.Kind), nullText(c.LocalPayload), c.LocalVersion, c.LocalDeleted,
			nullText(c.ServerPayload), c.ServerVersion, c.ServerDeleted, formatTime(c.ServerUpdatedAt),
			c.ServerConflictID, string(c.ConflictType), formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("ошибка сохранения конфликта: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE records SET sync_status = ? WHERE id = ?`, string(StatusConflict), c.RecordID)
		if err != nil {
			return fmt.Errorf("ошибка пометки конфликта: %w", err)
		}
		return nil
	})
}

// Conflicts возвращает неразрешенные конфликты
func (s *SQLiteStorage) Conflicts(ctx context.Context) ([]Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, kind, local_payload, local_version, local_deleted,
		       server_payload, server_version, server_deleted, server_updated_at,
		       server_conflict_id, conflict_type, created_at
		FROM sync_conflicts
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения конфликтов: %w", err)
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) GetConflict(ctx context.Context, recordID string) (*Conflict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_id, kind, local_payload, local_version, local_deleted,
		       server_payload, server_version, server_deleted, server_updated_at,
		       server_conflict_id, conflict_type, created_at
		FROM sync_conflicts
		WHERE record_id = ?`, recordID)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflictNotFound
	}
	return c, err
}

// KeepLocal оставляет локальную версию поверх серверной: версия server+1, запись снова в очереди
func (s *SQLiteStorage) KeepLocal(ctx context.Context, id string, serverVersion int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}

		rec.Version = serverVersion + 1
		rec.SyncStatus = StatusPending
		rec.UpdatedAt = s.now()
		if err := updateRecord(ctx, tx, rec); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_conflicts WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("ошибка удаления конфликта: %w", err)
		}

		op := OpUpdate
		if rec.Deleted {
			op = OpDelete
		}
		return s.queue.replace(ctx, tx, id, op, rec.UpdatedAt)
	})
}

// GetMeta читает значение из sync_metadata
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения метаданных: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	return nil
}

// GetCached возвращает сохраненный ответ сервера, если он не истек к now
func (s *SQLiteStorage) GetCached(ctx context.Context, key string, now time.Time) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`, key, formatTime(now)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения кеша: %w", err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteStorage) PutCached(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(value), formatTime(expiresAt))
	if err != nil {
		return fmt.Errorf("ошибка записи кеша: %w", err)
	}
	return nil
}

// DeleteCached удаляет ключи с префиксом, пустой префикс - все
func (s *SQLiteStorage) DeleteCached(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE substr(key, 1, length(?)) = ?`, prefix, prefix)
	if err != nil {
		return fmt.Errorf("ошибка очистки кеша: %w", err)
	}
	return nil
}

// Reset удаляет все локальные данные, используется при выходе из аккаунта
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"records", "pending_operations", "sync_conflicts", "sync_metadata", "cache_entries"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("ошибка очистки %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getRecord(ctx context.Context, q querier, id string) (*Record, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec *Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), string(rec.Payload), rec.Version, string(rec.SyncStatus), rec.Deleted,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), nullTime(rec.ServerUpdatedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}

func updateRecord(ctx context.Context, tx *sql.Tx, rec *Record) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE records
		SET payload = ?, version = ?, sync_status = ?, deleted = ?, updated_at = ?, server_updated_at = ?
		WHERE id = ?`,
		string(rec.Payload), rec.Version, string(rec.SyncStatus), rec.Deleted,
		formatTime(rec.UpdatedAt), nullTime(rec.ServerUpdatedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи: %w", err)
	}
	return nil
}

func purgeRecord(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return nil
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                  Record
		kind, payload, state string
		createdAt, updatedAt string
		serverUpdatedAt      sql.NullString
	)
	if err := row.Scan(&rec.ID, &kind, &payload, &rec.Version, &state, &rec.Deleted,
		&createdAt, &updatedAt, &serverUpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
	}

	rec.Kind = record.Kind(kind)
	rec.Payload = json.RawMessage(payload)
	rec.SyncStatus = SyncStatus(state)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if serverUpdatedAt.Valid {
		t := parseTime(serverUpdatedAt.String)
		rec.ServerUpdatedAt = &t
	}
	return &rec, nil
}

func scanConflict(row scanner) (*Conflict, error) {
	var (
		c                           Conflict
		kind, conflictType          string
		localPayload, serverPayload sql.NullString
		serverUpdatedAt, createdAt  string
	)
	if err := row.Scan(&c.RecordID, &kind, &localPayload, &c.LocalVersion, &c.LocalDeleted,
		&serverPayload, &c.ServerVersion, &c.ServerDeleted, &serverUpdatedAt,
		&c.ServerConflictID, &conflictType, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования конфликта: %w", err)
	}

	c.Kind = record.Kind(kind)
	c.ConflictType = domainsync.ConflictType(conflictType)
	if localPayload.Valid {
		c.LocalPayload = json.RawMessage(localPayload.String)
	}
	if serverPayload.Valid {
		c.ServerPayload = json.RawMessage(serverPayload.String)
	}
	c.ServerUpdatedAt = parseTime(serverUpdatedAt)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullText(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
