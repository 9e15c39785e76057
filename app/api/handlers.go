package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/listing-comb/app/cfg"
	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/service"
	"github.com/lysyi3m/listing-comb/app/tasks"
)

const defaultListLimit = 100

func NewHandler(svc CoreService, sources SourceDetector, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		service:   svc,
		sources:   sources,
		scheduler: scheduler,
	}
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrStateConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(status, gin.H{"error": "Internal error", "details": err.Error()})
		return
	}

	slog.Debug("Request rejected", "operation", operation, "status", status, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.GetVersion(),
		"sources":   h.sources.Count(),
	}

	if recent, err := h.service.ListTasks(0); err == nil {
		counts := map[model.TaskStatus]int{}
		for _, task := range recent {
			counts[task.Status]++
		}
		health["tasks"] = counts
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := h.sources.List()
	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIDetectSource(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		badRequest(c, "url is required")
		return
	}

	c.JSON(http.StatusOK, h.sources.Detect(req.URL))
}

// APICreateTask stores the task and queues it for collection.
func (h *Handler) APICreateTask(c *gin.Context) {
	var spec service.TaskSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	task, err := h.service.CreateTask(spec)
	if err != nil {
		respondError(c, "create_task", err)
		return
	}

	job := tasks.NewCollectTask(task.ID, h.service)
	if err := h.scheduler.EnqueueTask(job); err != nil {
		slog.Error("Error enqueueing collect task", "task_id", task.ID, "error", err)
		if _, cancelErr := h.service.CancelTask(task.ID); cancelErr != nil {
			slog.Error("Failed to cancel unqueued task", "task_id", task.ID, "error", cancelErr)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue collect task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task": task,
		"job": gin.H{
			"id":   job.ID,
			"type": job.Type,
		},
	})
}

func (h *Handler) APIListTasks(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	list, err := h.service.ListTasks(limit)
	if err != nil {
		respondError(c, "list_tasks", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": list,
		"total": len(list),
	})
}

func (h *Handler) APIGetTask(c *gin.Context) {
	task, err := h.service.GetTask(c.Param("id"))
	if err != nil {
		respondError(c, "get_task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) APICancelTask(c *gin.Context) {
	task, err := h.service.CancelTask(c.Param("id"))
	if err != nil {
		respondError(c, "cancel_task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) APIListRecords(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	query := database.RecordQuery{
		TaskID: c.Query("taskId"),
		Status: model.RecordStatus(c.Query("status")),
		Limit:  limit,
	}
	if ids := c.Query("ids"); ids != "" {
		query.IDs = strings.Split(ids, ",")
	}

	records, err := h.service.ListRecords(query)
	if err != nil {
		respondError(c, "list_records", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

func (h *Handler) APIGetRecord(c *gin.Context) {
	record, err := h.service.GetRecord(c.Param("id"))
	if err != nil {
		respondError(c, "get_record", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) APIReviewRecord(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	record, err := h.service.ReviewRecord(c.Param("id"), req.Status)
	if err != nil {
		respondError(c, "review_record", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) APIDeleteRecord(c *gin.Context) {
	if err := h.service.DeleteRecord(c.Param("id")); err != nil {
		respondError(c, "delete_record", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) APIListRules(c *gin.Context) {
	list, err := h.service.ListRules()
	if err != nil {
		respondError(c, "list_rules", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules": list,
		"total": len(list),
	})
}

// APISaveRule serves both POST /rules and PUT /rules/:id; the path id wins.
func (h *Handler) APISaveRule(c *gin.Context) {
	var rule model.BatchEditRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if id := c.Param("id"); id != "" {
		rule.ID = id
	}

	saved, err := h.service.UpsertRule(rule)
	if err != nil {
		respondError(c, "save_rule", err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) APIDeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Param("id")); err != nil {
		respondError(c, "delete_rule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// APIBatchEdit applies rules inline, or in the background when async is set.
func (h *Handler) APIBatchEdit(c *gin.Context) {
	var req batchEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if len(req.RecordIDs) == 0 {
		badRequest(c, "recordIds is required")
		return
	}

	if req.Async {
		job := tasks.NewBatchEditTask(req.RecordIDs, req.RuleIDs, h.service)
		if err := h.scheduler.EnqueueTask(job); err != nil {
			slog.Error("Error enqueueing batch edit task", "records", len(req.RecordIDs), "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Failed to enqueue batch edit task",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"job": gin.H{
				"id":   job.ID,
				"type": job.Type,
			},
		})
		return
	}

	result, err := h.service.BatchApply(req.RecordIDs, req.RuleIDs)
	if err != nil {
		respondError(c, "batch_edit", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) APIPublish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.Publish(req.RecordIDs, req.Settings)
	if err != nil {
		respondError(c, "publish", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) APIListCatalog(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	entries, err := h.service.ListCatalog(limit)
	if err != nil {
		respondError(c, "list_catalog", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"catalog": entries,
		"total":   len(entries),
	})
}
