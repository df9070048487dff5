package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"motium/internal/app/client/config"
	"motium/internal/domain/record"
	domainsync "motium/internal/domain/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// fakeRemote - сервер в памяти с тем же правилом конфликта: версия сервера >= присланной
type fakeRemote struct {
	mu           sync.Mutex
	authed       bool
	clock        time.Time
	records      map[string]domainsync.RecordSync
	pushErr      error
	sinces       []time.Time
	pushes       int
	nextConflict int
	resolutions  map[int]string

	// вызываются без блокировки, пока клиент ждет ответа
	onPage func(page int)
	onPush func()
	pages  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		authed:      true,
		clock:       time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		records:     map[string]domainsync.RecordSync{},
		resolutions: map[int]string{},
	}
}

func (f *fakeRemote) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRemote) put(rs domainsync.RecordSync) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs.UpdatedAt = f.tick()
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = rs.UpdatedAt
	}
	f.records[rs.ID] = rs
}

func (f *fakeRemote) get(id string) domainsync.RecordSync {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeRemote) IsAuthenticated() bool {
	return f.authed
}

func (f *fakeRemote) GetChanges(_ context.Context, since time.Time, afterID string, limit int) (*domainsync.GetChangesResponse, error) {
	f.mu.Lock()
	page := f.pages
	f.pages++
	hook := f.onPage
	f.mu.Unlock()
	if hook != nil {
		hook(page)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if afterID == "" {
		f.sinces = append(f.sinces, since)
	}

	var changed []domainsync.RecordSync
	for _, rs := range f.records {
		if rs.UpdatedAt.After(since) || (afterID != "" && rs.UpdatedAt.Equal(since) && rs.ID > afterID) {
			changed = append(changed, rs)
		}
	}
	sort.Slice(changed, func(i, j int) bool {
		if changed[i].UpdatedAt.Equal(changed[j].UpdatedAt) {
			return changed[i].ID < changed[j].ID
		}
		return changed[i].UpdatedAt.Before(changed[j].UpdatedAt)
	})

	end := min(limit, len(changed))
	return &domainsync.GetChangesResponse{
		Status:     "Ok",
		Records:    changed[:end],
		HasMore:    end < len(changed),
		ServerTime: f.clock,
	}, nil
}

func (f *fakeRemote) PushBatch(_ context.Context, records []domainsync.RecordSync) (*domainsync.BatchSyncResponse, error) {
	if f.onPush != nil {
		f.onPush()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pushes++
	if f.pushErr != nil {
		return nil, f.pushErr
	}

	resp := &domainsync.BatchSyncResponse{Status: "Ok"}
	for _, in := range records {
		existing, ok := f.records[in.ID]
		if ok && existing.Version == in.Version && existing.Deleted == in.Deleted && string(existing.Payload) == string(in.Payload) {
			resp.Processed++
			resp.Results = append(resp.Results, domainsync.RecordResult{
				ID:        in.ID,
				Status:    domainsync.ResultApplied,
				Version:   existing.Version,
				UpdatedAt: existing.UpdatedAt,
			})
			continue
		}
		if ok && existing.Version >= in.Version {
			f.nextConflict++
			server := existing
			resp.Conflicts++
			resp.Results = append(resp.Results, domainsync.RecordResult{
				ID:         in.ID,
				Status:     domainsync.ResultConflict,
				ConflictID: f.nextConflict,
				Server:     &server,
			})
			continue
		}
		in.UpdatedAt = f.tick()
		f.records[in.ID] = in
		resp.Processed++
		resp.Results = append(resp.Results, domainsync.RecordResult{
			ID:        in.ID,
			Status:    domainsync.ResultApplied,
			Version:   in.Version,
			UpdatedAt: in.UpdatedAt,
		})
	}
	return resp, nil
}

func (f *fakeRemote) ResolveConflict(_ context.Context, conflictID int, resolution string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolutions[conflictID] = resolution
	return nil
}

type syncFixture struct {
	svc    *SyncService
	store  *SQLiteStorage
	remote *fakeRemote
	clock  *testClock
}

func newSyncFixture(t *testing.T, strategy string) *syncFixture {
	t.Helper()

	store, clk := newTestStorage(t, QueueConfig{})
	remote := newFakeRemote()
	svc := NewSyncService(store, remote, SyncConfig{
		BatchSize:        2,
		ConflictStrategy: strategy,
		Overlap:          5 * time.Second,
	}, slog.Default())
	svc.now = clk.now

	return &syncFixture{svc: svc, store: store, remote: remote, clock: clk}
}

func vehicle(id string, version int, name string) domainsync.RecordSync {
	return domainsync.RecordSync{
		ID:      id,
		Kind:    record.KindVehicle,
		Payload: json.RawMessage(`{"name":"` + name + `"}`),
		Version: version,
	}
}

func TestSync_RequiresAuth(t *testing.T) {
	f := newSyncFixture(t, config.StrategyNewer)
	f.remote.authed = false

	res, err := f.svc.Sync(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestSync_InProgress(t *testing.T) {
	f := newSyncFixture(t, config.StrategyNewer)
	f.svc.isSyncing = true

	_, err := f.svc.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.True(t, f.svc.IsSyncing())
}

func TestSync_PullAndPush(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)

	f.remote.put(vehicle("remote-1", 1, "Zoe"))
	var local []string
	for _, name := range []string{"Clio", "Megane", "Kangoo"} {
		rec, err := f.store.Create(ctx, record.KindVehicle, json.RawMessage(`{"name":"`+name+`"}`))
		require.NoError(t, err)
		local = append(local, rec.ID)
	}

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 3, res.Uploaded)
	assert.Equal(t, 2, f.remote.pushes, "batch size 2 splits three records")

	counts, err := f.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[StatusSynced])
	assert.Equal(t, 0, counts[StatusPending])

	for _, id := range local {
		assert.Equal(t, 1, f.remote.get(id).Version)
	}

	lastSync, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 1, 0, time.UTC), lastSync, "server time of the first page")

	// свои же записи возвращаются при следующем pull и пропускаются
	res, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Downloaded)
	assert.Zero(t, res.Uploaded)

	require.Len(t, f.remote.sinces, 2)
	assert.True(t, f.remote.sinces[0].IsZero())
	assert.Equal(t, lastSync.Add(-5*time.Second), f.remote.sinces[1])

	stats := f.svc.Stats(ctx)
	assert.Equal(t, 2, stats.TotalSyncs)
	assert.Equal(t, 3, stats.TotalUploaded)
	assert.Equal(t, 1, stats.TotalDownloaded)
}

func TestSync_RemoteEditsAndDeletes(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)

	f.remote.put(vehicle("veh-1", 1, "Clio"))
	f.remote.put(vehicle("veh-2", 1, "Zoe"))
	_, err := f.svc.Sync(ctx)
	require.NoError(t, err)

	f.remote.put(vehicle("veh-1", 2, "Clio RS"))
	gone := vehicle("veh-2", 2, "")
	gone.Deleted = true
	gone.Payload = nil
	f.remote.put(gone)

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Downloaded)

	rec, err := f.store.Get(ctx, "veh-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.JSONEq(t, `{"name":"Clio RS"}`, string(rec.Payload))

	_, err = f.store.Lookup(ctx, "veh-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSync_LocalDeletePropagates(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)

	f.remote.put(vehicle("veh-1", 1, "Clio"))
	_, err := f.svc.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(ctx, "veh-1"))
	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)

	server := f.remote.get("veh-1")
	assert.True(t, server.Deleted)
	assert.Equal(t, 2, server.Version)

	_, err = f.store.Lookup(ctx, "veh-1")
	assert.ErrorIs(t, err, ErrNotFound, "acknowledged tombstone is purged")
}

// editBothSides создает запись на сервере, синхронизирует и меняет ее с обеих сторон
func editBothSides(t *testing.T, f *syncFixture) {
	t.Helper()
	ctx := context.Background()

	f.remote.put(vehicle("veh-1", 1, "Clio"))
	_, err := f.svc.Sync(ctx)
	require.NoError(t, err)

	f.remote.put(vehicle("veh-1", 2, "server"))
	_, err = f.store.Update(ctx, "veh-1", json.RawMessage(`{"name":"local"}`))
	require.NoError(t, err)
}

func TestSync_ConflictStrategies(t *testing.T) {
	tests := []struct {
		name         string
		strategy     string
		clientBehind bool
		wantPayload  string
		wantVersion  int
		wantStatus   SyncStatus
		wantServer   string
	}{
		{name: "server wins", strategy: config.StrategyServer, wantPayload: "server", wantVersion: 2, wantStatus: StatusSynced, wantServer: "server"},
		{name: "client wins", strategy: config.StrategyClient, wantPayload: "local", wantVersion: 3, wantStatus: StatusSynced, wantServer: "local"},
		{name: "newer local", strategy: config.StrategyNewer, wantPayload: "local", wantVersion: 3, wantStatus: StatusSynced, wantServer: "local"},
		{name: "newer server", strategy: config.StrategyNewer, clientBehind: true, wantPayload: "server", wantVersion: 2, wantStatus: StatusSynced, wantServer: "server"},
		{name: "manual", strategy: config.StrategyManual, wantPayload: "local", wantVersion: 2, wantStatus: StatusConflict, wantServer: "server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newSyncFixture(t, tt.strategy)
			// часы клиента по умолчанию впереди сервера
			if tt.clientBehind {
				f.clock.t = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
			}
			editBothSides(t, f)

			res, err := f.svc.Sync(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Conflicts)

			rec, err := f.store.Get(ctx, "veh-1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"name":"`+tt.wantPayload+`"}`, string(rec.Payload))
			assert.Equal(t, tt.wantVersion, rec.Version)
			assert.Equal(t, tt.wantStatus, rec.SyncStatus)
			assert.JSONEq(t, `{"name":"`+tt.wantServer+`"}`, string(f.remote.get("veh-1").Payload))
		})
	}
}

func TestSync_ManualResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("keep server", func(t *testing.T) {
		f := newSyncFixture(t, config.StrategyManual)
		editBothSides(t, f)
		_, err := f.svc.Sync(ctx)
		require.NoError(t, err)

		conflicts, err := f.store.Conflicts(ctx)
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, domainsync.ConflictEditEdit, conflicts[0].ConflictType)
		assert.Equal(t, 2, conflicts[0].ServerVersion)

		require.NoError(t, f.svc.ResolveConflict(ctx, "veh-1", false))

		rec, err := f.store.Get(ctx, "veh-1")
		require.NoError(t, err)
		assert.Equal(t, StatusSynced, rec.SyncStatus)
		assert.JSONEq(t, `{"name":"server"}`, string(rec.Payload))

		assert.ErrorIs(t, f.svc.ResolveConflict(ctx, "veh-1", false), ErrConflictNotFound)
	})

	t.Run("keep local", func(t *testing.T) {
		f := newSyncFixture(t, config.StrategyManual)
		editBothSides(t, f)
		_, err := f.svc.Sync(ctx)
		require.NoError(t, err)

		require.NoError(t, f.svc.ResolveConflict(ctx, "veh-1", true))
		res, err := f.svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Uploaded)

		server := f.remote.get("veh-1")
		assert.Equal(t, 3, server.Version)
		assert.JSONEq(t, `{"name":"local"}`, string(server.Payload))
	})
}

func TestSync_PushConflictReportedToServer(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyServer)

	f.remote.put(vehicle("veh-1", 1, "Clio"))
	_, err := f.svc.Sync(ctx)
	require.NoError(t, err)

	// правка на сервере с отстающими часами не попадает в окно pull
	f.remote.mu.Lock()
	skewed := vehicle("veh-1", 2, "server")
	skewed.UpdatedAt = f.remote.clock.Add(-time.Hour)
	f.remote.records["veh-1"] = skewed
	f.remote.mu.Unlock()

	_, err = f.store.Update(ctx, "veh-1", json.RawMessage(`{"name":"local"}`))
	require.NoError(t, err)

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, "server", f.remote.resolutions[1])

	rec, err := f.store.Get(ctx, "veh-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, rec.SyncStatus)
	assert.JSONEq(t, `{"name":"server"}`, string(rec.Payload))
}

func TestSync_TransportErrorBacksOff(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)
	f.store.queue.cfg.RetryBase = time.Hour

	rec, err := f.store.Create(ctx, record.KindVehicle, json.RawMessage(`{"name":"Clio"}`))
	require.NoError(t, err)

	f.remote.pushErr = errors.Join(ErrOffline, errors.New("connection reset"))
	res, err := f.svc.Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOffline)
	assert.False(t, res.Success)

	op := queuedOp(t, f.store, rec.ID)
	require.NotNil(t, op)
	assert.Equal(t, 1, op.Attempts)
	assert.Contains(t, op.LastError, "connection reset")

	last, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "failed run does not advance last_sync")

	// до истечения backoff запись не отправляется повторно
	f.remote.pushErr = nil
	res, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Uploaded)
	assert.Equal(t, 1, f.remote.pushes, "second run skipped the push")
}

func TestSync_ServerChangesDuringPagedPull(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)

	total := pullPageSize + 11
	for i := range total {
		f.remote.put(vehicle(fmt.Sprintf("veh-%03d", i), 1, "v"))
	}
	// запись с первой страницы меняется, пока клиент читает вторую
	f.remote.onPage = func(page int) {
		if page == 1 {
			f.remote.put(vehicle("veh-000", 2, "edited"))
		}
	}

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, total+1, res.Downloaded, "edited record arrives twice")

	records, err := f.store.List(ctx, record.KindVehicle)
	require.NoError(t, err)
	assert.Len(t, records, total)

	rec, err := f.store.Get(ctx, "veh-000")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.JSONEq(t, `{"name":"edited"}`, string(rec.Payload))

	_, err = f.store.Get(ctx, fmt.Sprintf("veh-%03d", pullPageSize))
	assert.NoError(t, err, "first record of the second page is not skipped")
}

func TestSync_DeleteWhileCreateInFlight(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)

	rec, err := f.store.Create(ctx, record.KindVehicle, json.RawMessage(`{"name":"Clio"}`))
	require.NoError(t, err)

	var once sync.Once
	f.remote.onPush = func() {
		once.Do(func() {
			require.NoError(t, f.store.Delete(ctx, rec.ID))
		})
	}

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded, "create, then the delete on top of it")

	server := f.remote.get(rec.ID)
	assert.True(t, server.Deleted, "local delete reaches the server")
	assert.Equal(t, 2, server.Version)

	_, err = f.store.Lookup(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := f.store.Queue().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// следующий pull не возвращает запись
	res, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Downloaded)
	_, err = f.store.Lookup(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSync_PushesPerRecordCapped(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, config.StrategyNewer)

	rec, err := f.store.Create(ctx, record.KindVehicle, json.RawMessage(`{"name":"Clio"}`))
	require.NoError(t, err)

	// запись меняется во время каждой отправки
	edits := 0
	f.remote.onPush = func() {
		edits++
		_, err := f.store.Update(ctx, rec.ID, json.RawMessage(fmt.Sprintf(`{"name":"edit-%d"}`, edits)))
		require.NoError(t, err)
	}

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, maxPushesPerRun, f.remote.pushes)
	assert.Equal(t, maxPushesPerRun, res.Uploaded)

	server := f.remote.get(rec.ID)
	assert.Equal(t, 2, server.Version)
	assert.JSONEq(t, `{"name":"edit-1"}`, string(server.Payload))

	local, err := f.store.Lookup(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, local.SyncStatus)
	assert.Equal(t, 3, local.Version)
	assert.JSONEq(t, `{"name":"edit-2"}`, string(local.Payload))

	op := queuedOp(t, f.store, rec.ID)
	require.NotNil(t, op, "last edit waits for the next run")
	assert.Equal(t, OpUpdate, op.Op)
}

func TestSync_DropOrphan(t *testing.T) {
	ctx := context.Background()

	enqueueOrphan := func(t *testing.T, f *syncFixture) {
		t.Helper()
		_, err := f.store.db.ExecContext(ctx, `
			INSERT INTO pending_operations (record_id, op, attempts, next_attempt_at, last_error, created_at)
			VALUES ('ghost', 'update', 0, '2024-01-01T00:00:00.000000000Z', '', '2024-01-01T00:00:00.000000000Z')`)
		require.NoError(t, err)
	}

	t.Run("removed", func(t *testing.T) {
		f := newSyncFixture(t, config.StrategyNewer)
		enqueueOrphan(t, f)

		f.svc.dropOrphan(ctx, "ghost")

		n, err := f.store.Queue().Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("remove fails", func(t *testing.T) {
		f := newSyncFixture(t, config.StrategyNewer)
		var logs bytes.Buffer
		f.svc.log = slog.New(slog.NewTextHandler(&logs, nil))
		enqueueOrphan(t, f)
		_, err := f.store.db.ExecContext(ctx, `
			CREATE TRIGGER keep_ghost BEFORE DELETE ON pending_operations
			WHEN old.record_id = 'ghost'
			BEGIN SELECT RAISE(ABORT, 'locked'); END`)
		require.NoError(t, err)

		f.svc.dropOrphan(ctx, "ghost")

		out := logs.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "не удалось удалить операцию без записи")
		assert.Contains(t, out, "record_id=ghost")
		assert.Contains(t, out, "locked")
	})
}

func TestSync_AutoSyncStops(t *testing.T) {
	f := newSyncFixture(t, config.StrategyNewer)
	f.svc.cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.StartAutoSync(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return f.svc.Stats(context.Background()).TotalSyncs >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auto sync did not stop")
	}
}
