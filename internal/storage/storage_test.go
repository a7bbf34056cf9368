package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"netinspect/internal/logger"
	"netinspect/pkg/model"
	"netinspect/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(t *testing.T, method model.HTTPMethod, rawURL string, start time.Time, status int) model.NetworkTransaction {
	t.Helper()
	req := model.NewNetworkRequest(model.RequestParams{
		URL:     rawURL,
		Method:  method,
		Headers: traffic.FromMap(map[string]string{"Accept": "application/json"}),
		Time:    start,
	})
	tx := model.NewNetworkTransaction(req, start)
	if status == 0 {
		return tx
	}
	resp := model.NewNetworkResponse(model.ResponseParams{
		StatusCode:   status,
		Headers:      traffic.FromMap(map[string]string{"Content-Type": "application/json"}),
		Body:         []byte(`{"ok":true}`),
		ResponseTime: 120 * time.Millisecond,
		Time:         start.Add(120 * time.Millisecond),
	})
	return tx.WithResponse(resp, start.Add(120*time.Millisecond))
}

// stores 对两种实现跑同一组用例
func stores(t *testing.T) map[string]TransactionStore {
	t.Helper()
	sqlStore, err := OpenSQL(filepath.Join(t.TempDir(), "tx.sqlite3"), "test_", logger.NewNop())
	require.NoError(t, err)
	mem := NewMemoryStore()
	t.Cleanup(func() {
		_ = sqlStore.Close()
		_ = mem.Close()
	})
	return map[string]TransactionStore{"sqlite": sqlStore, "memory": mem}
}

func TestStore_RoundTripAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tx := newTx(t, model.MethodPost, "https://api.example.com/users?x=1", time.UnixMilli(1_700_000_000_000), 201)
			require.NoError(t, s.Save(ctx, tx))

			got, err := s.Fetch(ctx, tx.ID)
			require.NoError(t, err)
			assert.Equal(t, tx, got)

			require.NoError(t, s.DeleteAll(ctx))
			all, err := s.FetchAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestStore_SaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			start := time.UnixMilli(1_700_000_000_000)
			pending := newTx(t, model.MethodGet, "https://example.com/a", start, 0)
			require.NoError(t, s.Save(ctx, pending))

			failed := pending.MarkAsFailed(start.Add(time.Second), "timeout")
			require.NoError(t, s.Save(ctx, failed))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			got, err := s.Fetch(ctx, pending.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusFailed, got.Status)
			assert.Equal(t, "timeout", got.Error)
		})
	}
}

func TestStore_UpdateNeverInserts(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			start := time.UnixMilli(1_700_000_000_000)
			pending := newTx(t, model.MethodGet, "https://example.com/a", start, 0)

			err := s.Update(ctx, pending.MarkAsFailed(start.Add(time.Second), "timeout"))
			assert.ErrorIs(t, err, ErrNotFound)
			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			require.NoError(t, s.Save(ctx, pending))
			require.NoError(t, s.Update(ctx, pending.MarkAsFailed(start.Add(time.Second), "timeout")))
			got, err := s.Fetch(ctx, pending.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusFailed, got.Status)

			byStatus, err := s.FetchByStatusCode(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, byStatus, 1)

			require.NoError(t, s.Delete(ctx, pending.ID))
			assert.ErrorIs(t, s.Update(ctx, got), ErrNotFound)
			_, err = s.Fetch(ctx, pending.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_QueriesAreNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			oldest := newTx(t, model.MethodGet, "https://example.com/1", base, 200)
			middle := newTx(t, model.MethodPost, "https://example.com/2", base.Add(time.Minute), 404)
			newest := newTx(t, model.MethodGet, "https://example.com/3", base.Add(2*time.Minute), 200)
			for _, tx := range []model.NetworkTransaction{middle, oldest, newest} {
				require.NoError(t, s.Save(ctx, tx))
			}

			all, err := s.FetchAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, ids(all))

			recent, err := s.FetchRecent(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{newest.ID, middle.ID}, ids(recent))

			gets, err := s.FetchByMethod(ctx, model.MethodGet)
			require.NoError(t, err)
			assert.Equal(t, []string{newest.ID, oldest.ID}, ids(gets))

			notFound, err := s.FetchByStatusCode(ctx, 404)
			require.NoError(t, err)
			assert.Equal(t, []string{middle.ID}, ids(notFound))

			since, err := s.FetchSince(ctx, base.Add(30*time.Second))
			require.NoError(t, err)
			assert.Equal(t, []string{newest.ID, middle.ID}, ids(since))
		})
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tx := newTx(t, model.MethodGet, "https://example.com/", time.Now(), 200)
			require.NoError(t, s.Save(ctx, tx))

			assert.NoError(t, s.Delete(ctx, "does-not-exist"))
			require.NoError(t, s.Delete(ctx, tx.ID))

			_, err := s.Fetch(ctx, tx.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ClosedReportsContextNotAvailable(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Close())
			err := s.Save(ctx, newTx(t, model.MethodGet, "https://example.com/", time.Now(), 200))
			assert.ErrorIs(t, err, ErrContextNotAvailable)

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "save", se.Op)

			_, err = s.FetchAll(ctx)
			assert.ErrorIs(t, err, ErrContextNotAvailable)
		})
	}
}

func TestOpen_SchemaVersionMismatchResetsDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "transactions.sqlite3")

	s := Open(Options{Dir: dir, Version: 1})
	require.Equal(t, ModePersistent, s.Mode())
	require.NoError(t, s.Save(ctx, newTx(t, model.MethodGet, "https://example.com/", time.Now(), 200)))
	require.NoError(t, s.Close())

	// 同版本重开保留数据
	s = Open(Options{Dir: dir, Version: 1})
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, s.Close())

	require.NoError(t, os.WriteFile(dbPath+"-journal", []byte("stale"), 0o644))

	s = Open(Options{Dir: dir, Version: 2})
	defer s.Close()
	assert.Equal(t, ModePersistent, s.Mode())
	assert.NoFileExists(t, dbPath+"-journal")

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Save(ctx, newTx(t, model.MethodGet, "https://example.com/", time.Now(), 200)))
	assert.Equal(t, 2, NewSettings(filepath.Join(dir, "settings.json")).Int(KeySchemaVersion, 0))
}

func TestOpen_FallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := Open(Options{Dir: filepath.Join(blocker, "inner")})
	defer s.Close()
	assert.Equal(t, ModeMemory, s.Mode())

	tx := newTx(t, model.MethodGet, "https://example.com/", time.Now(), 200)
	require.NoError(t, s.Save(context.Background(), tx))
	got, err := s.Fetch(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestSettings_SetAndGet(t *testing.T) {
	s := NewSettings(filepath.Join(t.TempDir(), "nested", "settings.json"))
	assert.Equal(t, 7, s.Int("missing", 7))

	require.NoError(t, s.Set(KeySchemaVersion, 4))
	require.NoError(t, s.Set("ui.theme", "dark"))

	assert.Equal(t, 4, s.Int(KeySchemaVersion, 0))
	r, err := s.Get("ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", r.String())
}

func TestCredentialStores(t *testing.T) {
	ctx := context.Background()
	sqlStore, err := OpenSQL(filepath.Join(t.TempDir(), "c.sqlite3"), "", logger.NewNop())
	require.NoError(t, err)
	defer sqlStore.Close()

	for name, cs := range map[string]CredentialStore{
		"sqlite": NewCredentialStore(sqlStore),
		"memory": NewCredentialStore(NewMemoryStore()),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cs.Put(ctx, Credential{Service: "b.svc", Account: "ann", Value: []byte("s3cret")}))
			require.NoError(t, cs.Put(ctx, Credential{Service: "a.svc", Account: "bob", Value: []byte("pw")}))
			require.NoError(t, cs.Put(ctx, Credential{Service: "b.svc", Account: "ann", Value: []byte("rotated")}))

			list, err := cs.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a.svc", list[0].Service)

			got, err := cs.Get(ctx, "b.svc", "ann")
			require.NoError(t, err)
			assert.Equal(t, []byte("rotated"), got.Value)

			require.NoError(t, cs.Remove(ctx, "b.svc", "ann"))
			_, err = cs.Get(ctx, "b.svc", "ann")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func ids(txs []model.NetworkTransaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
