package preferences

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"netinspect/internal/config"
	"netinspect/internal/storage"
	"netinspect/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuite(t *testing.T, dir, suite, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, suite+".json"), []byte(body), 0o644))
}

func byKey(prefs []model.Preference) map[string]model.Preference {
	out := make(map[string]model.Preference, len(prefs))
	for _, p := range prefs {
		out[p.Suite+"/"+p.Key] = p
	}
	return out
}

func TestUserDefaults_ScanDecodesAllKinds(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "com.example.app", `{
		"name": "ann",
		"launches": 12,
		"ratio": 0.75,
		"onboarded": true,
		"avatar": {"$data": "aGVsbG8="},
		"tags": ["a", 1],
		"profile": {"age": 30, "nested": {"ok": false}},
		"nothing": null,
		"AppleLanguages": ["en"],
		"NSWindowFrame": "0 0 100 100"
	}`)

	prefs, err := NewUserDefaults(dir, nil, nil, false).Scan(context.Background())
	require.NoError(t, err)
	got := byKey(prefs)
	require.Len(t, got, 7, "null and system keys are skipped")

	assert.Equal(t, model.StringValue("ann"), got["com.example.app/name"].Value)
	assert.Equal(t, model.IntValue(12), got["com.example.app/launches"].Value)
	assert.Equal(t, model.KindInt, got["com.example.app/launches"].Type)
	assert.Equal(t, model.DoubleValue(0.75), got["com.example.app/ratio"].Value)
	assert.Equal(t, model.BoolValue(true), got["com.example.app/onboarded"].Value)
	assert.Equal(t, model.BytesValue("hello"), got["com.example.app/avatar"].Value)
	assert.Equal(t, model.ArrayValue{model.StringValue("a"), model.IntValue(1)}, got["com.example.app/tags"].Value)
	assert.Equal(t, model.MapValue{
		"age":    model.IntValue(30),
		"nested": model.MapValue{"ok": model.BoolValue(false)},
	}, got["com.example.app/profile"].Value)
	assert.Equal(t, model.SourceUserDefaults, got["com.example.app/name"].Source)

	all, err := NewUserDefaults(dir, nil, nil, true).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 9)
}

func TestUserDefaults_SuiteFilters(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "com.example.app", `{"a":1}`)
	writeSuite(t, dir, "com.example.widget", `{"b":2}`)
	writeSuite(t, dir, "com.apple.security", `{"c":3}`)
	writeSuite(t, dir, "broken", `{not json`)

	suites, err := NewUserDefaults(dir, nil, nil, false).Suites()
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "com.example.app", "com.example.widget"}, suites)

	u := NewUserDefaults(dir, []string{"com.example.*"}, []string{"com.example.widget"}, false)
	suites, err = u.Suites()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.app"}, suites)

	prefs, err := NewUserDefaults(dir, nil, nil, false).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, prefs, 2, "broken suite is skipped")

	missing, err := NewUserDefaults(filepath.Join(dir, "nope"), nil, nil, false).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestUserDefaults_WriteThrough(t *testing.T) {
	dir := t.TempDir()
	u := NewUserDefaults(dir, nil, nil, false)

	require.NoError(t, u.Set("app", "feature.flag", model.BoolValue(true)))
	require.NoError(t, u.Set("app", "blob", model.BytesValue{0xff, 0x00}))
	require.NoError(t, u.Set("app", "list", model.ArrayValue{model.IntValue(1), model.DoubleValue(2.5)}))

	got := byKey(mustScan(t, u))
	assert.Equal(t, model.BoolValue(true), got["app/feature.flag"].Value, "dotted keys are literal")
	assert.Equal(t, model.BytesValue{0xff, 0x00}, got["app/blob"].Value)
	assert.Equal(t, model.ArrayValue{model.IntValue(1), model.DoubleValue(2.5)}, got["app/list"].Value)

	require.NoError(t, u.Remove("app", "feature.flag"))
	_, ok := byKey(mustScan(t, u))["app/feature.flag"]
	assert.False(t, ok)

	assert.ErrorIs(t, u.Set("../escape", "k", model.IntValue(1)), ErrInvalidSuite)
}

func TestManager_ScansAndUpdatesBothSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeSuite(t, dir, "app", `{"theme":"dark"}`)

	creds := storage.NewMemoryCredentials()
	require.NoError(t, creds.Put(ctx, storage.Credential{Service: "api", Account: "token", Value: []byte("abc")}))
	require.NoError(t, creds.Put(ctx, storage.Credential{Service: "internal", Account: "key", Value: []byte{0xff}}))

	cfg := config.Preferences{
		AutoDiscoverUserDefaults: true,
		AutoDiscoverKeychain:     true,
		ExcludeKeychainServices:  []string{"internal"},
		DefaultsDir:              dir,
	}
	m := NewManager(cfg, creds, nil)

	prefs, err := m.Preferences(ctx)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	got := byKey(prefs)
	assert.Equal(t, model.SourceKeychain, got["api/token"].Source)
	assert.Equal(t, model.StringValue("abc"), got["api/token"].Value)

	require.NoError(t, m.Update(ctx, got["app/theme"], model.StringValue("light")))
	require.NoError(t, m.Update(ctx, got["api/token"], model.StringValue("rotated")))
	assert.ErrorIs(t, m.Update(ctx, got["api/token"], model.IntValue(1)), ErrUnsupportedValue)
	assert.ErrorIs(t, m.Update(ctx, model.Preference{Source: model.SourcePropertyList}, model.IntValue(1)), ErrReadOnlySource)

	prefs, err = m.Preferences(ctx)
	require.NoError(t, err)
	got = byKey(prefs)
	assert.Equal(t, model.StringValue("light"), got["app/theme"].Value)
	assert.Equal(t, model.StringValue("rotated"), got["api/token"].Value)

	require.NoError(t, m.Delete(ctx, got["api/token"]))
	prefs, err = m.Preferences(ctx)
	require.NoError(t, err)
	assert.Len(t, prefs, 1)
}

func TestManager_AutoDiscoverDisabled(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "app", `{"theme":"dark"}`)
	m := NewManager(config.Preferences{DefaultsDir: dir}, storage.NewMemoryCredentials(), nil)

	prefs, err := m.Preferences(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prefs)
}

func mustScan(t *testing.T, u *UserDefaults) []model.Preference {
	t.Helper()
	prefs, err := u.Scan(context.Background())
	require.NoError(t, err)
	return prefs
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, model.IntValue(42), v)

	v, err = ParseValue([]byte(`{"$data":"aGk="}`))
	require.NoError(t, err)
	assert.Equal(t, model.BytesValue("hi"), v)

	_, err = ParseValue([]byte(`null`))
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	_, err = ParseValue([]byte(`{bad`))
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}
