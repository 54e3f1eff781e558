// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianValidate/pkg/logging"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---- Test Helpers ----

func check(valid bool, items ...rules.ErrorItem) rules.CheckFunc {
	return func(context.Context, rules.Kwargs) (any, error) {
		return rules.CheckOutcome{IsValid: valid, Errors: items}, nil
	}
}

func mustRule(t *testing.T, def rules.Definition) *rules.Rule {
	t.Helper()
	r, err := rules.NewRule(def)
	require.NoError(t, err)
	return r
}

func checkedRules(t *testing.T) []*rules.Rule {
	t.Helper()
	ctx := context.Background()

	schema := mustRule(t, rules.Definition{ID: "schema", Name: "Schema", Check: check(true)})
	dupes := mustRule(t, rules.Definition{
		ID:            "dupes",
		Check:         check(false, rules.ErrorItem{ID: "r1", Name: "row 1"}),
		DependencyIDs: []string{"schema"},
		ErrorMsg:      "Duplicate rows.",
	})
	blocked := mustRule(t, rules.Definition{ID: "blocked", Check: check(true), DependencyIDs: []string{"dupes"}})
	review := mustRule(t, rules.Definition{ID: "review", Optional: true})

	for _, r := range []*rules.Rule{schema, dupes} {
		_, err := r.ExecCheck(ctx, false)
		require.NoError(t, err)
	}
	blocked.SetFailedDependency(dupes)
	_, err := blocked.ExecCheck(ctx, false)
	require.NoError(t, err)

	return []*rules.Rule{schema, dupes, blocked, review}
}

func doRequest(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- Snapshot ----

func TestSnapshot(t *testing.T) {
	st := Snapshot(checkedRules(t))

	assert.False(t, st.Valid)
	assert.Equal(t, []string{"dupes"}, st.Failing)
	require.Len(t, st.Rules, 4)

	schema := st.Rules[0]
	assert.Equal(t, "schema", schema.ID)
	assert.Equal(t, "Schema", schema.Name)
	assert.Equal(t, "valid", schema.Validity)
	assert.Equal(t, "Required", schema.Type)
	assert.Empty(t, schema.Messages)

	dupes := st.Rules[1]
	assert.Equal(t, "invalid", dupes.Validity)
	assert.Equal(t, 1, dupes.ErrorCount)
	assert.Equal(t, []string{"schema"}, dupes.Dependencies)
	assert.Equal(t, []string{"Duplicate rows."}, dupes.Messages)

	blocked := st.Rules[2]
	assert.Equal(t, "unchecked", blocked.Validity)
	assert.Equal(t, "dupes", blocked.FailedDependency)
	assert.NotEmpty(t, blocked.Messages)

	assert.Equal(t, "Optional", st.Rules[3].Type)
}

func TestSnapshot_AllValid(t *testing.T) {
	r := mustRule(t, rules.Definition{ID: "a", Check: check(true)})
	_, err := r.ExecCheck(context.Background(), false)
	require.NoError(t, err)

	st := Snapshot([]*rules.Rule{r})
	assert.True(t, st.Valid)
	assert.Empty(t, st.Failing)
	assert.NotNil(t, st.Failing)
}

func TestSnapshot_CapsItems(t *testing.T) {
	items := make([]rules.ErrorItem, maxItemsPerRule+5)
	for i := range items {
		items[i] = rules.ErrorItem{ID: fmt.Sprint(i)}
	}
	r := mustRule(t, rules.Definition{ID: "big", Check: check(false, items...)})
	_, err := r.ExecCheck(context.Background(), false)
	require.NoError(t, err)

	st := Snapshot([]*rules.Rule{r})
	assert.Equal(t, maxItemsPerRule+5, st.Rules[0].ErrorCount)
	assert.Len(t, st.Rules[0].Errors, maxItemsPerRule)
}

// ---- Handlers ----

func TestHandleStatus(t *testing.T) {
	state := NewState()
	router := NewRouter(NewHandlers(state), "test", nil)

	w := doRequest(router, http.MethodGet, "/v1/validation/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	st := Snapshot(checkedRules(t))
	st.RunID = "run-1"
	st.Trigger = "startup"
	state.Update(st)

	w = doRequest(router, http.MethodGet, "/v1/validation/status")
	require.Equal(t, http.StatusOK, w.Code)

	var got Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "startup", got.Trigger)
	assert.Equal(t, []string{"dupes"}, got.Failing)
	assert.Len(t, got.Rules, 4)
	assert.Equal(t, "r1", got.Rules[1].Errors[0].ID)
}

func TestHandleLog(t *testing.T) {
	w := doRequest(NewRouter(NewHandlers(NewState()), "test", nil), http.MethodGet, "/v1/validation/log")
	assert.Equal(t, http.StatusNotFound, w.Code)

	ring := logging.NewRingExporter(10)
	logger := logging.New(logging.Config{Quiet: true, Exporter: ring})
	logger.Info("validation finished", "run_id", "run-1")

	router := NewRouter(NewHandlers(NewState(), WithLogSource(ring)), "test", nil)
	w = doRequest(router, http.MethodGet, "/v1/validation/log")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Entries []logging.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "validation finished", body.Entries[0].Message)
	assert.Equal(t, "INFO", body.Entries[0].LevelName)
	assert.Equal(t, "run-1", body.Entries[0].Attrs["run_id"])
}

func TestHandleRun(t *testing.T) {
	w := doRequest(NewRouter(NewHandlers(NewState()), "test", nil), http.MethodPost, "/v1/validation/run")
	assert.Equal(t, http.StatusNotFound, w.Code)

	pending := false
	trigger := func() bool {
		if pending {
			return false
		}
		pending = true
		return true
	}
	router := NewRouter(NewHandlers(NewState(), WithTrigger(trigger)), "test", nil)

	w = doRequest(router, http.MethodPost, "/v1/validation/run")
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = doRequest(router, http.MethodPost, "/v1/validation/run")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleHealth(t *testing.T) {
	w := doRequest(NewRouter(NewHandlers(NewState()), "test", nil), http.MethodGet, "/v1/validation/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestMetricsRoute(t *testing.T) {
	called := false
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	w := doRequest(NewRouter(NewHandlers(NewState()), "test", metrics), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)

	w = doRequest(NewRouter(NewHandlers(NewState()), "test", nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- Run ----

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, addr, NewRouter(NewHandlers(NewState()), "test", nil), nil)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/v1/validation/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = Run(context.Background(), ln.Addr().String(), http.NotFoundHandler(), nil)
	assert.Error(t, err)
}
