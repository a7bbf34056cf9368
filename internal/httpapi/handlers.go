package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"netinspect/internal/dashboard"
	"netinspect/internal/logger"
	"netinspect/internal/preferences"
	"netinspect/internal/service"
	"netinspect/internal/storage"
	"netinspect/pkg/model"

	"github.com/go-chi/chi/v5"
)

type handlers struct {
	svc Backend
	log logger.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor 将服务错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotInitialized), errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, preferences.ErrUnsupportedValue),
		errors.Is(err, preferences.ErrReadOnlySource),
		errors.Is(err, preferences.ErrInvalidSuite):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Err(err, "请求处理失败", "path", r.URL.Path)
	}
	writeError(w, status, err)
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.svc.State())})
}

func (h *handlers) activate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Activate(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.state(w, r)
}

func (h *handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	h.svc.Deactivate()
	h.state(w, r)
}

func (h *handlers) dismiss(w http.ResponseWriter, r *http.Request) {
	h.svc.Dismiss()
	h.state(w, r)
}

// parseQuery 读取 method/status/limit 查询参数
func parseQuery(r *http.Request) (service.Query, error) {
	var q service.Query
	v := r.URL.Query()
	if m := v.Get("method"); m != "" {
		q.Method = model.ParseHTTPMethod(m)
		if !q.Method.Valid() {
			return q, errors.New("invalid method " + strconv.Quote(m))
		}
	}
	if s := v.Get("status"); s != "" {
		code, err := strconv.Atoi(s)
		if err != nil || code < 100 || code > 599 {
			return q, errors.New("invalid status " + strconv.Quote(s))
		}
		q.StatusCode = code
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("invalid limit " + strconv.Quote(s))
		}
		q.Limit = n
	}
	return q, nil
}

func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	txs, err := h.svc.Transactions(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []model.NetworkTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Transaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *handlers) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) clearTransactions(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearTransactions(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := dashboard.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.Dashboard(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) listPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.svc.Preferences(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if prefs == nil {
		prefs = []model.Preference{}
	}
	writeJSON(w, http.StatusOK, prefs)
}

// preferenceUpdate PUT /api/preferences 的请求体
type preferenceUpdate struct {
	Source model.PreferenceSource `json:"source"`
	Suite  string                 `json:"suite"`
	Key    string                 `json:"key"`
	Value  json.RawMessage        `json:"value"`
}

func (h *handlers) updatePreference(w http.ResponseWriter, r *http.Request) {
	var body preferenceUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Key == "" {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}
	v, err := preferences.ParseValue(body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pref := model.Preference{Source: body.Source, Suite: body.Suite, Key: body.Key}
	if err := h.svc.UpdatePreference(r.Context(), pref, v); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
