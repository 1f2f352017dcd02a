package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(r *gin.Engine, path, token string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func putJSON(r *gin.Engine, path, token string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScoreEndpoint_ResponseTimeDistribution(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	app := newTestApp(t, testConfig(t))
	r := app.server.Router()

	incomes := []string{"0-30k", "30k-60k", "60k-100k", "100k-200k", "200k+"}
	var durations []time.Duration
	for i := 0; i < 200; i++ {
		body := map[string]interface{}{
			"answers": map[string]interface{}{
				"income":        incomes[i%len(incomes)],
				"entertainment": []string{"movies"},
			},
			"country": "JP",
		}

		start := time.Now()
		w := postJSON(r, "/api/score", "", body)
		durations = append(durations, time.Since(start))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	p := calculatePercentiles(durations, 50, 95, 99)
	t.Logf("Score endpoint: p50=%v p95=%v p99=%v", p[0], p[1], p[2])
	assert.Less(t, p[1], 100*time.Millisecond, "p95 should stay under 100ms")
}

func TestConcurrentCompletions_ThreadSafety(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}

	app := newTestApp(t, testConfig(t))
	r := app.server.Router()

	const respondents = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		resultIDs = make(map[string]bool)
		failures  []string
	)

	for i := 0; i < respondents; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			w := postJSON(r, "/api/sessions", "", nil)
			if w.Code != http.StatusCreated {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("start %d: %d", n, w.Code))
				mu.Unlock()
				return
			}
			var started struct {
				Session struct {
					ID string `json:"id"`
				} `json:"session"`
				Token string `json:"token"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &started)
			base := "/api/sessions/" + started.Session.ID

			putJSON(r, base+"/answers/income", started.Token, map[string]interface{}{"answer": "60k-100k"})
			putJSON(r, base+"/country", started.Token, map[string]interface{}{"country": "DE"})

			// both calls race on the same session and must agree on one result
			var inner sync.WaitGroup
			ids := make([]string, 2)
			for j := range ids {
				inner.Add(1)
				go func(j int) {
					defer inner.Done()
					w := postJSON(r, base+"/complete", started.Token, map[string]interface{}{"public": n%2 == 0})
					var completed struct {
						ResultID string `json:"result_id"`
					}
					_ = json.Unmarshal(w.Body.Bytes(), &completed)
					ids[j] = completed.ResultID
				}(j)
			}
			inner.Wait()

			mu.Lock()
			defer mu.Unlock()
			if ids[0] == "" || ids[0] != ids[1] {
				failures = append(failures, fmt.Sprintf("respondent %d got results %q and %q", n, ids[0], ids[1]))
				return
			}
			resultIDs[ids[0]] = true
		}(i)
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Len(t, resultIDs, respondents)
}

func calculatePercentiles(durations []time.Duration, percentiles ...float64) []time.Duration {
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]time.Duration, len(percentiles))
	if len(sorted) == 0 {
		return out
	}
	for i, p := range percentiles {
		idx := int(float64(len(sorted)-1) * p / 100)
		out[i] = sorted[idx]
	}
	return out
}
