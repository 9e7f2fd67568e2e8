package server

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/ppe"
	"siteguard/internal/site"
	"siteguard/internal/task"
)

func (s *Server) analyzeFunc(cfg config.SiteConfig) task.Func {
	path := s.conf.VideoPath(cfg)
	return func(ctx context.Context) (*dao.AnalysisResult, error) {
		return s.opts.Analyzer.Analyze(ctx, cfg.Id, path)
	}
}

func (s *Server) submitAnalysis(cfg config.SiteConfig) (*task.Task, error) {
	return s.opts.Tasks.Submit("analyze "+cfg.Id, cfg.Id, s.analyzeFunc(cfg))
}

func (s *Server) writeSubmitError(c *gin.Context, err error) {
	if goerrors.Is(err, task.ErrShutdown) {
		s.writeError(c, http.StatusServiceUnavailable, err)
		return
	}
	s.writeError(c, http.StatusInternalServerError, err)
}

// handleAnalyze
// @Summary Analyze the video of a site and wait for the result
// @Description A missing video yields a simulated result flagged as such. A run that fails while
// @Description decoding is answered with 500 and the partial result.
// @Tags ppe
// @Produce json
// @Param site_id path string true "site id"
// @Success 200 {object} dao.AnalysisResult
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "unknown site"
// @Failure 500 {object} dao.AnalyzeErrorResponse
// @Router /api/ppe/analyze/{site_id} [post]
func (s *Server) handleAnalyze(c *gin.Context) {
	cfg := siteFromContext(c)
	t, err := s.submitAnalysis(cfg)
	if err != nil {
		s.writeSubmitError(c, err)
		return
	}

	res, err := t.Wait(c.Request.Context())
	if err != nil {
		if c.Request.Context().Err() != nil {
			// the client is gone, the task keeps running and can be polled
			s.logger.Infof("analyze %s: client left, task %s continues", cfg.Id, t.Id())
			return
		}
		c.JSON(http.StatusInternalServerError, dao.AnalyzeErrorResponse{
			Error:  err.Error(),
			Result: res,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleGetResults
// @Summary Latest analysis result of a site
// @Description Sites without a readable result, including unknown ones, get a simulated result
// @Description with simulated=true.
// @Tags ppe
// @Produce json
// @Param site_id path string true "site id"
// @Success 200 {object} dao.AnalysisResult
// @Router /api/ppe/results/{site_id} [get]
func (s *Server) handleGetResults(c *gin.Context) {
	siteId := site.Canonical(c.Param("site_id"))
	if cfg, ok := s.overview.Registry().Lookup(siteId); ok {
		siteId = cfg.Id
	}
	c.JSON(http.StatusOK, s.overview.Result(siteId))
}

// handleBatchAnalyze
// @Summary Queue an analysis for several sites
// @Description Without a body every configured site is queued.
// @Tags ppe
// @Accept json
// @Produce json
// @Param req body dao.BatchAnalyzeRequest false "sites to analyze"
// @Success 202 {object} dao.BatchAnalyzeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "unknown site"
// @Router /api/ppe/batch-analyze [post]
func (s *Server) handleBatchAnalyze(c *gin.Context) {
	var req dao.BatchAnalyzeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, http.StatusBadRequest, err)
			return
		}
	}

	registry := s.overview.Registry()
	sites := registry.Sites()
	if len(req.Sites) > 0 {
		sites = make([]config.SiteConfig, 0, len(req.Sites))
		for _, id := range req.Sites {
			cfg, ok := registry.Lookup(id)
			if !ok {
				s.writeError(c, http.StatusNotFound, fmt.Errorf("%w: %s", ppe.ErrUnknownSite, id))
				return
			}
			sites = append(sites, cfg)
		}
	}

	resp := dao.BatchAnalyzeResponse{Tasks: make([]*dao.TaskSpec, 0, len(sites))}
	for _, cfg := range sites {
		t, err := s.submitAnalysis(cfg)
		if err != nil {
			s.writeSubmitError(c, err)
			return
		}
		resp.Tasks = append(resp.Tasks, t.Snapshot())
	}
	s.logger.Infof("batch analysis queued for %d sites", len(resp.Tasks))
	c.JSON(http.StatusAccepted, resp)
}

// handleListTasks
// @Summary Analysis tasks, newest first
// @Tags ppe
// @Produce json
// @Success 200 {object} dao.ListTasksResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/ppe/tasks [get]
func (s *Server) handleListTasks(c *gin.Context) {
	items, err := s.opts.Tasks.List()
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, dao.ListTasksResponse{
		Items: items,
		Total: len(items),
	})
}

// handleGetTask
// @Summary One analysis task
// @Tags ppe
// @Produce json
// @Param task_id path string true "task id"
// @Success 200 {object} dao.TaskSpec
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/ppe/tasks/{task_id} [get]
func (s *Server) handleGetTask(c *gin.Context) {
	spec, err := s.opts.Tasks.Get(c.Param("task_id"))
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	} else if spec == nil {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("task not found"))
		return
	}
	c.JSON(http.StatusOK, spec)
}

// handleCancelTask
// @Summary Cancel a pending or running analysis task
// @Tags ppe
// @Produce json
// @Param task_id path string true "task id"
// @Success 200 {object} dao.TaskSpec
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "task already finished"
// @Router /api/ppe/tasks/{task_id} [delete]
func (s *Server) handleCancelTask(c *gin.Context) {
	taskId := c.Param("task_id")
	t, ok := s.opts.Tasks.Task(taskId)
	if !ok {
		spec, err := s.opts.Tasks.Get(taskId)
		if err != nil {
			s.writeError(c, http.StatusInternalServerError, err)
		} else if spec == nil {
			s.writeError(c, http.StatusNotFound, fmt.Errorf("task not found"))
		} else {
			s.writeError(c, http.StatusConflict, fmt.Errorf("task already %s", spec.Status))
		}
		return
	}
	if st := t.Snapshot().Status; st.Terminal() {
		s.writeError(c, http.StatusConflict, fmt.Errorf("task already %s", st))
		return
	}

	t.Cancel()
	select {
	case <-t.Done():
	case <-c.Request.Context().Done():
	}
	c.JSON(http.StatusOK, t.Snapshot())
}
