package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/store"
)

func batchEngine(run Runner, st *store.Store) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/audit/batch", PostBatch(run, st, nil, config.WebhookConfig{}))
	r.GET("/api/v1/batch/:id", GetBatch())
	return r
}

func batchStatus(t *testing.T, r *gin.Engine, id string) models.BatchStatusResponse {
	t.Helper()
	w := get(t, r, "/api/v1/batch/"+id)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.BatchStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPostBatchRunsAllURLs(t *testing.T) {
	fake := &fakeRunner{}
	st := newTestStore(t)
	r := batchEngine(fake, st)

	w := postJSON(t, r, "/api/v1/audit/batch", gin.H{
		"urls": []string{"https://acme.test/a", "https://acme.test/b", "https://acme.test/c"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.ID, "batch-")
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, 3, resp.Total)

	require.Eventually(t, func() bool {
		return batchStatus(t, r, resp.ID).Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	status := batchStatus(t, r, resp.ID)
	assert.Equal(t, 3, status.Completed)
	require.Len(t, status.Results, 3)
	for i, item := range status.Results {
		require.NotNil(t, item, "result %d", i)
		assert.Nil(t, item.Error)
		assert.NotEmpty(t, item.ReportID)
		assert.Equal(t, 82, item.Score)
	}
	assert.Equal(t, 3, fake.callCount())
}

func TestPostBatchPartialFailure(t *testing.T) {
	fake := &fakeRunner{}
	r := batchEngine(fake, newTestStore(t))

	w := postJSON(t, r, "/api/v1/audit/batch", gin.H{
		"urls": []string{"https://acme.test/ok", "ftp://acme.test/bad"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		s := batchStatus(t, r, resp.ID).Status
		return s != "processing"
	}, 2*time.Second, 10*time.Millisecond)

	status := batchStatus(t, r, resp.ID)
	assert.Equal(t, "partial", status.Status)
	require.Len(t, status.Results, 2)
	assert.Nil(t, status.Results[0].Error)
	require.NotNil(t, status.Results[1].Error)
	assert.Equal(t, models.ErrCodeInvalidInput, status.Results[1].Error.Code)
	assert.Equal(t, 1, fake.callCount(), "invalid URLs never reach the engine")
}

func TestPostBatchAllFailed(t *testing.T) {
	fake := &fakeRunner{err: models.NewAuditError(models.ErrCodeFetchFailed, "connection refused", nil)}
	r := batchEngine(fake, newTestStore(t))

	w := postJSON(t, r, "/api/v1/audit/batch", gin.H{"urls": []string{"https://acme.test/a"}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		return batchStatus(t, r, resp.ID).Status == "failed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPostBatchRejectsOversizedBatch(t *testing.T) {
	urls := make([]string, 26)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://acme.test/p%d", i)
	}
	r := batchEngine(&fakeRunner{}, newTestStore(t))

	w := postJSON(t, r, "/api/v1/audit/batch", gin.H{"urls": urls})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeAuditResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
}

func TestPostBatchRejectsEmptyBatch(t *testing.T) {
	r := batchEngine(&fakeRunner{}, newTestStore(t))

	w := postJSON(t, r, "/api/v1/audit/batch", gin.H{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBatchNotFound(t *testing.T) {
	r := batchEngine(&fakeRunner{}, newTestStore(t))

	w := get(t, r, "/api/v1/batch/batch-missing")
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeAuditResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeReportNotFound, resp.Error.Code)
}

func TestBatchReportsAreRetrievable(t *testing.T) {
	fake := &fakeRunner{}
	st := newTestStore(t)
	r := batchEngine(fake, st)

	w := postJSON(t, r, "/api/v1/audit/batch", gin.H{"urls": []string{"https://acme.test/a"}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		return batchStatus(t, r, resp.ID).Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	status := batchStatus(t, r, resp.ID)
	require.Len(t, status.Results, 1)
	_, ok := st.Get(status.Results[0].ReportID)
	assert.True(t, ok, "batch item reports land in the store")
}
