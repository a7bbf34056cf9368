package cdp

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"netinspect/internal/capture"
	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/rules"
	"netinspect/internal/storage"
	"netinspect/pkg/model"
	"netinspect/pkg/rulespec"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wall = network.TimeSinceEpoch(1_700_000_000.5)

func newTestTracker(t *testing.T, rs ...rulespec.Rule) (*tracker, *storage.MemoryStore, *capture.Writer) {
	t.Helper()
	store := storage.NewMemoryStore()
	w := capture.NewWriter(store)
	t.Cleanup(func() { _ = w.Close(context.Background()) })
	return newTracker(w, rules.New(rs), observability.NewMetrics(), logger.NewNop()), store, w
}

func requestEvent(id, rawURL, method string, ts network.MonotonicTime) *network.RequestWillBeSentReply {
	return &network.RequestWillBeSentReply{
		RequestID: network.RequestID(id),
		Request: network.Request{
			URL:     rawURL,
			Method:  method,
			Headers: network.Headers(`{"Accept":"application/json","Authorization":"Bearer t"}`),
		},
		Timestamp: ts,
		WallTime:  wall,
	}
}

func flushAll(t *testing.T, w *capture.Writer, s storage.Reader) []model.NetworkTransaction {
	t.Helper()
	require.NoError(t, w.Flush(context.Background()))
	txs, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	return txs
}

func TestTracker_CompletedRequest(t *testing.T) {
	tr, store, w := newTestTracker(t)

	tr.onRequest(requestEvent("1", "https://example.com/api/items?page=2", "GET", 100))
	pending := flushAll(t, w, store)
	require.Len(t, pending, 1)
	assert.Equal(t, model.StatusPending, pending[0].Status)
	assert.Equal(t, int64(1_700_000_000_500), pending[0].StartTime)

	tr.onResponse(&network.ResponseReceivedReply{
		RequestID: "1",
		Timestamp: 100.25,
		Response: network.Response{
			Status:  200,
			Headers: network.Headers(`{"Content-Type":"application/json"}`),
		},
	})
	tr.onFinished("1", 100.5, []byte(`{"items":[]}`))

	txs := flushAll(t, w, store)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, model.StatusCompleted, tx.Status)
	assert.Equal(t, "/api/items", tx.Request.Path)
	assert.Equal(t, "application/json", tx.Request.Headers.Get("accept"))
	require.NotNil(t, tx.Response)
	assert.True(t, tx.Response.IsJSON)
	assert.InDelta(t, 0.25, tx.Response.ResponseTime, 1e-6)
	assert.Equal(t, `{"items":[]}`, string(tx.Response.Body))
	d, ok := tx.DurationSeconds()
	require.True(t, ok)
	assert.InDelta(t, 0.5, d, 1e-3)
	assert.False(t, tr.has("1"))
}

func TestTracker_FailedAndCancelled(t *testing.T) {
	tr, store, w := newTestTracker(t)
	canceled := true

	tr.onRequest(requestEvent("a", "https://example.com/a", "POST", 10))
	tr.onRequest(requestEvent("b", "https://example.com/b", "GET", 10))
	tr.onFailed(&network.LoadingFailedReply{RequestID: "a", Timestamp: 11, ErrorText: "net::ERR_CONNECTION_REFUSED"})
	tr.onFailed(&network.LoadingFailedReply{RequestID: "b", Timestamp: 11, Canceled: &canceled})

	byPath := map[string]model.NetworkTransaction{}
	for _, tx := range flushAll(t, w, store) {
		byPath[tx.Request.Path] = tx
	}
	assert.Equal(t, model.StatusFailed, byPath["/a"].Status)
	assert.Equal(t, "net::ERR_CONNECTION_REFUSED", byPath["/a"].Error)
	assert.Equal(t, model.StatusCancelled, byPath["/b"].Status)
}

func TestTracker_RedirectStartsNewTransaction(t *testing.T) {
	tr, store, w := newTestTracker(t)

	tr.onRequest(requestEvent("r", "http://example.com/old", "GET", 1))
	next := requestEvent("r", "https://example.com/new", "GET", 1.1)
	next.RedirectResponse = &network.Response{Status: 301, Headers: network.Headers(`{"Location":"https://example.com/new"}`)}
	tr.onRequest(next)
	tr.onResponse(&network.ResponseReceivedReply{RequestID: "r", Timestamp: 1.2, Response: network.Response{Status: 200}})
	tr.onFinished("r", 1.3, nil)

	txs := flushAll(t, w, store)
	require.Len(t, txs, 2)
	codes := map[string]int{}
	for _, tx := range txs {
		assert.True(t, tx.Status.Terminal())
		codes[tx.Request.Path] = tx.StatusCode()
	}
	assert.Equal(t, map[string]int{"/old": 301, "/new": 200}, codes)
}

func TestTracker_RulesAndAbandon(t *testing.T) {
	tr, store, w := newTestTracker(t,
		rulespec.Rule{
			ID:      "skip-static",
			Match:   rulespec.Match{AllOf: []rulespec.Condition{{Type: rulespec.ConditionURL, Pattern: "*.png"}}},
			Actions: []rulespec.Action{{Type: rulespec.ActionSkip}},
		},
		rulespec.Rule{
			ID:      "redact",
			Match:   rulespec.Match{AllOf: []rulespec.Condition{{Type: rulespec.ConditionURL, Pattern: "*"}}},
			Actions: []rulespec.Action{{Type: rulespec.ActionRedact, Headers: []string{"authorization"}}},
		},
	)

	tr.onRequest(requestEvent("img", "https://example.com/logo.png", "GET", 1))
	tr.onRequest(requestEvent("api", "https://example.com/me", "GET", 1))
	assert.False(t, tr.has("img"))

	tr.abandon(time.Unix(1_700_000_001, 0))
	txs := flushAll(t, w, store)
	require.Len(t, txs, 1)
	assert.Equal(t, model.StatusCancelled, txs[0].Status)
	assert.Equal(t, rules.Mask, txs[0].Request.Headers.Get("Authorization"))
}

func TestDecodeBody(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	got := decodeBody(&network.GetResponseBodyReply{Body: base64.StdEncoding.EncodeToString(raw), Base64Encoded: true}, 0)
	assert.Equal(t, raw, got)
	assert.Equal(t, []byte("he"), decodeBody(&network.GetResponseBodyReply{Body: "hello"}, 2))
	assert.Nil(t, decodeBody(nil, 0))
}
