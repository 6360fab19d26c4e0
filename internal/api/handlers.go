package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/fees"
	"github.com/guarzo/fbascout/internal/history"
	"github.com/guarzo/fbascout/internal/identifier"
	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/report"
	"github.com/guarzo/fbascout/internal/storage"
)

func (s *Server) classify(c *gin.Context) {
	kind, id := identifier.Classify(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"kind": kind, "id": id})
}

func (s *Server) computeFees(c *gin.Context) {
	var in model.FeeInputs
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := fees.ComputeChecked(in)
	if err != nil {
		var verr *fees.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

type historyResponse struct {
	Points    []model.HistoryPoint `json:"points"`
	Summary   history.Summary      `json:"summary"`
	Anomalies []history.Anomaly    `json:"anomalies,omitempty"`
}

func decodeResponse(feed history.RawFeed) historyResponse {
	points := history.Decode(feed)
	return historyResponse{
		Points:    points,
		Summary:   history.Summarize(points, time.Now()),
		Anomalies: history.Inspect(feed),
	}
}

func (s *Server) decodeHistory(c *gin.Context) {
	var feed history.RawFeed
	if err := c.ShouldBindJSON(&feed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, decodeResponse(feed))
}

func (s *Server) fetchHistory(c *gin.Context) {
	if s.opts.Feeds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no history source configured"})
		return
	}
	kind, asin := identifier.Classify(c.Param("asin"))
	if kind != identifier.ASIN {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not an ASIN"})
		return
	}

	feed, err := s.opts.Feeds.FetchRawHistoryFeed(c.Request.Context(), asin)
	if err != nil {
		slog.Warn("history fetch failed", "asin", asin, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decodeResponse(feed))
}

type startBatchRequest struct {
	Identifiers []string           `json:"identifiers"`
	Text        string             `json:"text"`
	Profile     *model.CostProfile `json:"profile"`
}

func (s *Server) startBatch(c *gin.Context) {
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	ids := append([]string(nil), req.Identifiers...)
	if req.Text != "" {
		ids = append(ids, identifier.Parse(req.Text)...)
	}
	if err := s.opts.Processor.Check(ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := s.opts.Profile
	if req.Profile != nil {
		profile = *req.Profile
		if err := fees.Validate(profile.Apply(model.FeeInputs{})); err != nil {
			var verr *fees.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile: " + verr.Error(), "fields": verr.Fields})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile: " + err.Error()})
			return
		}
	}

	j := s.launch(ids, profile)
	c.JSON(http.StatusAccepted, gin.H{"id": j.batch.ID(), "progress": j.batch.Snapshot()})
}

// launch starts a batch in the background and registers it.
func (s *Server) launch(ids []string, profile model.CostProfile) *job {
	batch := s.opts.Processor.NewBatch(ids, profile)
	ctx, cancel := context.WithCancel(s.base)
	j := &job{batch: batch, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.evictLocked()
	s.jobs[batch.ID()] = j
	s.mu.Unlock()

	if m := s.opts.Metrics; m != nil {
		m.ActiveBatches.Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		rep, err := s.opts.Processor.Execute(ctx, batch, nil)
		if err != nil {
			slog.Warn("batch failed", "id", batch.ID(), "err", err)
		}

		s.mu.Lock()
		j.report = rep
		j.finished = s.now()
		s.mu.Unlock()
		close(j.done)

		if m := s.opts.Metrics; m != nil {
			m.ActiveBatches.Dec()
			m.ObserveReport(rep)
		}
		if s.opts.Store != nil {
			// The batch context may already be cancelled; saving must not be.
			saveCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := s.opts.Store.SaveReport(saveCtx, rep); err != nil {
				slog.Error("save report failed", "id", rep.ID, "err", err)
			}
		}
	}()
	return j
}

// evictLocked forgets batches that finished more than JobTTL ago. s.mu must
// be held.
func (s *Server) evictLocked() {
	cutoff := s.now().Add(-s.opts.JobTTL)
	for id, j := range s.jobs {
		if j.report != nil && j.finished.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func (s *Server) lookup(c *gin.Context) (*job, bool) {
	s.mu.Lock()
	s.evictLocked()
	j, ok := s.jobs[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown batch"})
	}
	return j, ok
}

// finished returns the job's report once the batch has ended.
func (s *Server) finished(j *job) *bulk.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return j.report
}

func (s *Server) getBatch(c *gin.Context) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	resp := gin.H{"id": j.batch.ID(), "progress": j.batch.Snapshot()}
	if rep := s.finished(j); rep != nil {
		resp["report"] = rep
		resp["summary"] = rep.Summary()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cancelBatch(c *gin.Context) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	if s.finished(j) != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "batch already finished"})
		return
	}
	j.cancel()
	c.JSON(http.StatusAccepted, gin.H{"id": j.batch.ID(), "cancelling": true})
}

func (s *Server) exportCSV(c *gin.Context) {
	s.export(c, "text/csv; charset=utf-8", "csv", func(buf *bytes.Buffer, items []model.BulkItem) error {
		return report.WriteBulkCSV(buf, items)
	})
}

func (s *Server) exportXLSX(c *gin.Context) {
	s.export(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx",
		func(buf *bytes.Buffer, items []model.BulkItem) error {
			return report.WriteBulkXLSX(buf, items)
		})
}

func (s *Server) export(c *gin.Context, contentType, ext string, write func(*bytes.Buffer, []model.BulkItem) error) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	rep := s.finished(j)
	if rep == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "batch still running"})
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, rep.Items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="bulk-%s.%s"`, rep.ID, ext))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) listRuns(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run store configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	reps, err := s.opts.Store.ListReports(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reps == nil {
		reps = []*bulk.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": reps})
}

func (s *Server) getRun(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run store configured"})
		return
	}
	rep, err := s.opts.Store.GetReport(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// asinRuns lists the analytics recorded for one ASIN across stored runs.
func (s *Server) asinRuns(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run store configured"})
		return
	}
	kind, asin := identifier.Classify(c.Param("asin"))
	if kind != identifier.ASIN {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not an ASIN"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.opts.Store.ASINHistory(c.Request.Context(), asin, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []model.AnalyticsRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"asin": asin, "records": records})
}
