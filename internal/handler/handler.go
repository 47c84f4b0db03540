// Package handler exposes the formula engine and the calculator service over
// HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
	"github.com/ilramdhan/calc-suite/internal/modules/calculator"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// JobRunner starts a created batch job. It must not block the request.
type JobRunner func(job *entity.BatchJob)

// Handler serves the HTTP API
type Handler struct {
	svc    *calculator.Service
	engine *formula.Engine
	runJob JobRunner
}

// Option configures a Handler
type Option func(*Handler)

// WithJobRunner starts batch jobs as soon as they are created. Without it
// jobs stay pending until a worker picks them up.
func WithJobRunner(run JobRunner) Option {
	return func(h *Handler) { h.runJob = run }
}

// New creates a handler over the calculator service
func New(svc *calculator.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, engine: svc.Engine()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InlineRunner runs jobs on the pool in a background goroutine
func InlineRunner(pool *calculator.WorkerPool) JobRunner {
	return func(job *entity.BatchJob) {
		go func() {
			if _, err := pool.Run(context.Background(), job); err != nil {
				log.Printf("Batch job %s failed: %v", job.ID, err)
			}
		}()
	}
}

// Register mounts the routes on app
func (h *Handler) Register(app fiber.Router) {
	app.Get("/health", h.health)

	api := app.Group("/api/v1")

	api.Post("/formulas/validate", h.validate)
	api.Post("/formulas/parse", h.parse)
	api.Post("/formulas/execute", h.execute)
	api.Post("/formulas/render", h.render)
	api.Post("/formulas/crosscheck", h.crossCheck)

	api.Get("/functions", h.functions)
	api.Get("/constants", h.constants)
	api.Get("/operators", h.operators)

	api.Get("/calculators", h.listCalculators)
	api.Post("/calculators", h.createCalculator)
	api.Get("/calculators/:id", h.getCalculator)
	api.Put("/calculators/:id", h.updateCalculator)
	api.Delete("/calculators/:id", h.deleteCalculator)
	api.Post("/calculators/:id/execute", h.executeCalculator)
	api.Get("/calculators/:id/history", h.calculatorHistory)
	api.Post("/calculators/:id/batch", h.createBatch)

	api.Get("/history", h.recentHistory)

	api.Get("/jobs", h.listJobs)
	api.Get("/jobs/:id", h.getJob)
	api.Get("/jobs/:id/results", h.jobResults)

	api.Get("/stats", h.stats)
}

// formulaRequest is the body of the /formulas endpoints
type formulaRequest struct {
	Tokens    []formula.Token    `json:"tokens"`
	Bindings  formula.Bindings   `json:"bindings"`
	AngleMode *formula.AngleMode `json:"angle_mode"`
}

func (r *formulaRequest) options() []formula.EvalOption {
	if r.AngleMode == nil {
		return nil
	}
	return []formula.EvalOption{formula.WithAngleMode(*r.AngleMode)}
}

func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) validate(c *fiber.Ctx) error {
	var req formulaRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	return c.JSON(h.engine.Validate(req.Tokens))
}

func (h *Handler) parse(c *fiber.Ctx) error {
	var req formulaRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	tree, err := h.engine.Parse(req.Tokens)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"tree": tree})
}

func (h *Handler) execute(c *fiber.Ctx) error {
	var req formulaRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	res, err := h.engine.Execute(req.Tokens, req.Bindings, req.options()...)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) render(c *fiber.Ctx) error {
	var req formulaRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	r, err := h.engine.Render(req.Tokens)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"display":     r.Display,
		"expression":  r.Expression,
		"latex":       r.LaTeX,
		"identifiers": r.Identifiers,
		"concat":      formula.Concat(req.Tokens),
	})
}

func (h *Handler) crossCheck(c *fiber.Ctx) error {
	var req formulaRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	res, err := h.engine.CrossCheck(req.Tokens, req.Bindings, req.options()...)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) functions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.engine.Catalog().Functions()})
}

func (h *Handler) constants(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.engine.Catalog().Constants()})
}

func (h *Handler) operators(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.engine.Catalog().Operators()})
}

func (h *Handler) listCalculators(c *fiber.Ctx) error {
	limit, offset := paging(c)
	calcs, total, err := h.svc.List(c.UserContext(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"data":   calcs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) createCalculator(c *fiber.Ctx) error {
	var in calculator.Input
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	calc, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(calc)
}

func (h *Handler) getCalculator(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	calc, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(calc)
}

func (h *Handler) updateCalculator(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var in calculator.Input
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	calc, err := h.svc.Update(c.UserContext(), id, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(calc)
}

func (h *Handler) deleteCalculator(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	if err := h.svc.Delete(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) executeCalculator(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Bindings formula.Bindings `json:"bindings"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	rec, err := h.svc.Execute(c.UserContext(), id, req.Bindings)
	var fe *formula.Error
	if errors.As(err, &fe) && rec != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": fe, "record": rec})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"result": *rec.Result, "record": rec})
}

func (h *Handler) calculatorHistory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	limit, offset := paging(c)
	recs, total, err := h.svc.History(c.UserContext(), id, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"data":   recs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) createBatch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Bindings []formula.Bindings `json:"bindings"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	job, err := h.svc.CreateBatch(c.UserContext(), id, req.Bindings)
	if err != nil {
		return fail(c, err)
	}
	if h.runJob != nil {
		h.runJob(job)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  job.ID,
		"message": "Batch evaluation started",
		"status":  job.Status,
		"total":   job.TotalRecords,
	})
}

func (h *Handler) recentHistory(c *fiber.Ctx) error {
	limit, offset := paging(c)
	recs, err := h.svc.RecentHistory(c.UserContext(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"data":   recs,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) listJobs(c *fiber.Ctx) error {
	limit, _ := paging(c)
	jobs, err := h.svc.RecentJobs(c.UserContext(), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": jobs})
}

func (h *Handler) getJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	job, err := h.svc.Job(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"job":      job,
		"progress": job.Progress(),
	})
}

func (h *Handler) jobResults(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid id")
	}
	limit, offset := paging(c)
	recs, err := h.svc.JobResults(c.UserContext(), id, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"data":   recs,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) stats(c *fiber.Ctx) error {
	st, err := h.svc.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"calculators":     st.Calculators,
		"cached_formulas": st.CachedFormulas,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// fail maps an error to its HTTP status. Formula errors are sent as they
// are, carrying code, position, symbol, function and value.
func fail(c *fiber.Ctx, err error) error {
	var fe *formula.Error
	switch {
	case errors.As(err, &fe):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": fe})
	case errors.Is(err, formula.ErrExport):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "ExportFailed", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "NotFound", "not found")
	case errors.Is(err, calculator.ErrInvalidInput):
		return errorJSON(c, fiber.StatusBadRequest, "BadRequest", err.Error())
	}
	log.Printf("Request %s %s failed: %v", c.Method(), c.Path(), err)
	return errorJSON(c, fiber.StatusInternalServerError, "Internal", "internal error")
}

func badRequest(c *fiber.Ctx, msg string) error {
	return errorJSON(c, fiber.StatusBadRequest, "BadRequest", msg)
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": msg, "position": -1},
	})
}
