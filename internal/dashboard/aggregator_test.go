package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"netinspect/internal/storage"
	"netinspect/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPrefs struct {
	prefs []model.Preference
	err   error
}

func (s staticPrefs) Preferences(context.Context) ([]model.Preference, error) { return s.prefs, s.err }

func save(t *testing.T, s storage.Writer, at time.Time, status int) {
	t.Helper()
	req := model.NewNetworkRequest(model.RequestParams{URL: "https://example.com/items", Time: at})
	resp := model.NewNetworkResponse(model.ResponseParams{StatusCode: status, Time: at})
	tx := model.NewNetworkTransaction(req, at).WithResponse(resp, at.Add(200*time.Millisecond))
	require.NoError(t, s.Save(context.Background(), tx))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterLastSession, f)

	f, err = ParseFilter("last24Hours")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, f.Window())

	_, err = ParseFilter("lastWeek")
	assert.Error(t, err)
}

func TestAggregator_FiltersByWindow(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := storage.NewMemoryStore()
	save(t, store, now.Add(-10*time.Minute), 200)
	save(t, store, now.Add(-3*time.Hour), 500)
	save(t, store, now.Add(-30*time.Hour), 200)

	prefs := staticPrefs{prefs: []model.Preference{
		model.NewPreference("old", model.BoolValue(true), model.SourceUserDefaults, "app", now.Add(-48*time.Hour)),
	}}
	agg := NewAggregator(store, prefs, WithClock(func() time.Time { return now }))

	session := agg.Snapshot(context.Background(), FilterLastSession)
	assert.Equal(t, FilterLastSession, session.Filter)
	assert.Equal(t, now.Add(-time.Hour).UnixMilli(), session.WindowStart)
	assert.Equal(t, 1, session.Report.Network.TotalCalls)
	assert.Equal(t, 100.0, session.Report.Network.SuccessRate)
	assert.Equal(t, 1, session.Report.Preferences.Total, "preferences are never time-filtered")
	assert.Equal(t, storage.ModeMemory, session.StorageMode)

	day := agg.Snapshot(context.Background(), FilterLast24Hours)
	assert.Equal(t, 2, day.Report.Network.TotalCalls)
	assert.Equal(t, 1, day.Report.Network.ErrorCalls)
	assert.Empty(t, day.Warnings)
}

func TestAggregator_DegradesOnReadErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Close())
	agg := NewAggregator(store, staticPrefs{err: errors.New("keychain locked")})

	snap := agg.Snapshot(context.Background(), FilterLastSession)
	assert.Len(t, snap.Warnings, 2)
	assert.Equal(t, 100.0, snap.Report.Health.Score)
	assert.Zero(t, snap.Report.Network.TotalCalls)
}
