package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/store"
	"github.com/seolens/seolens/webhook"
)

const (
	jobRetention     = time.Hour
	jobSweepInterval = 5 * time.Minute
)

// jobs tracks every in-flight and recently finished batch. Finished jobs
// stay queryable for jobRetention so clients can collect results.
var jobs = newJobTable()

// jobTable serializes all access to batch jobs. Workers publish items and
// status handlers take snapshots under the same lock, so polling a job
// while it runs never races with the workers.
type jobTable struct {
	mu   sync.Mutex
	byID map[string]*models.BatchJob
}

func newJobTable() *jobTable {
	t := &jobTable{byID: make(map[string]*models.BatchJob)}
	go func() {
		ticker := time.NewTicker(jobSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			t.sweep(time.Now().Add(-jobRetention).Unix())
		}
	}()
	return t
}

func (t *jobTable) insert(job *models.BatchJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[job.ID] = job
}

// setItem records one finished URL. The item must not be mutated after
// publication.
func (t *jobTable) setItem(job *models.BatchJob, idx int, item *models.BatchItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job.Results[idx] = item
	job.Completed++
}

func (t *jobTable) finish(job *models.BatchJob, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job.Status = status
}

// snapshot returns a consistent copy of the job state for serving.
func (t *jobTable) snapshot(id string) (models.BatchStatusResponse, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.byID[id]
	if !ok {
		return models.BatchStatusResponse{}, false
	}
	return models.BatchStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Completed: job.Completed,
		Total:     job.Total,
		Results:   append([]*models.BatchItem(nil), job.Results...),
	}, true
}

func (t *jobTable) sweep(cutoff int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, job := range t.byID {
		if job.CreatedAt < cutoff {
			delete(t.byID, id)
		}
	}
}

// PostBatch returns the handler for POST /api/v1/audit/batch. The job is
// acknowledged immediately and the URLs are audited in the background.
func PostBatch(run Runner, st *store.Store, br BrowserStatser, wh config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondDetail(c, http.StatusBadRequest, models.ErrCodeInvalidInput,
				"invalid request body: "+err.Error())
			return
		}

		job := &models.BatchJob{
			ID:        newBatchID(),
			Status:    "processing",
			Total:     len(req.URLs),
			Results:   make([]*models.BatchItem, len(req.URLs)),
			CreatedAt: time.Now().Unix(),
		}
		jobs.insert(job)

		go runBatch(run, st, br, job, req, wh)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     job.ID,
			Status: job.Status,
			Total:  job.Total,
		})
	}
}

// GetBatch returns the handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		status, ok := jobs.snapshot(id)
		if !ok {
			respondDetail(c, http.StatusNotFound, models.ErrCodeReportNotFound,
				"batch job not found: "+id)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// runBatch audits the job's URLs with a small worker pool sized from the
// browser tab pool, so batches cannot starve interactive requests of
// render capacity.
func runBatch(run Runner, st *store.Store, br BrowserStatser, job *models.BatchJob, req models.BatchRequest, wh config.WebhookConfig) {
	workers := 0
	if br != nil {
		workers = br.Stats().MaxPages
	}
	if workers <= 0 {
		workers = 4
	}
	if workers > job.Total {
		workers = job.Total
	}

	type task struct {
		idx int
		url string
	}
	queue := make(chan task)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				jobs.setItem(job, t.idx, auditOne(run, st, t.url, req.Options))
			}
		}()
	}
	for i, u := range req.URLs {
		queue <- task{idx: i, url: u}
	}
	close(queue)
	wg.Wait()

	// All workers are done; the results slice is stable now.
	failed := 0
	for _, item := range job.Results {
		if item.Error != nil {
			failed++
		}
	}
	status := "completed"
	switch {
	case failed == job.Total:
		status = "failed"
	case failed > 0:
		status = "partial"
	}
	jobs.finish(job, status)

	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"succeeded", job.Total-failed,
		"failed", failed,
		"total", job.Total,
	)

	if req.WebhookURL != "" {
		if snap, ok := jobs.snapshot(job.ID); ok {
			webhook.DeliverAsync(req.WebhookURL, wh.Secret, webhook.BatchCompleted(job.ID, snap))
		}
	}
}

// auditOne runs a single audit for one batch URL using the shared
// options. Failures become the item's error detail instead of
// propagating.
func auditOne(run Runner, st *store.Store, targetURL string, opts models.BatchOptions) *models.BatchItem {
	item := &models.BatchItem{URL: targetURL}

	req := &models.AuditRequest{
		URL:        targetURL,
		Categories: opts.Categories,
		Keywords:   opts.Keywords,
		Timeout:    opts.Timeout,
	}
	req.Defaults()
	if err := req.Validate(); err != nil {
		item.Error = detailFor(err)
		return item
	}

	rep, err := run.Run(context.Background(), req)
	if err != nil {
		item.Error = detailFor(err)
		return item
	}

	st.Put(rep, requestKey(req))
	item.ReportID = rep.ID
	item.Score = rep.OverallScore
	return item
}

func newBatchID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "batch-" + hex.EncodeToString(b)
}
