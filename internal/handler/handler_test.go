package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/infrastructure/memory"
	"github.com/ilramdhan/calc-suite/internal/modules/calculator"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

const circleTokens = `[
	{"kind":"constant","symbol":"π"},
	{"kind":"operator","symbol":"×"},
	{"kind":"variable","symbol":"r"},
	{"kind":"operator","symbol":"^"},
	{"kind":"constant","symbol":"2"}
]`

const ratioTokens = `[
	{"kind":"variable","symbol":"a"},
	{"kind":"operator","symbol":"÷"},
	{"kind":"variable","symbol":"b"}
]`

func newApp(t *testing.T, opts ...Option) (*fiber.App, *calculator.WorkerPool) {
	t.Helper()
	engine := formula.NewEngine(formula.WithCache(formula.NewCache(32)))
	calcs := memory.NewCalculatorRepository()
	history := memory.NewHistoryRepository()
	jobs := memory.NewBatchJobRepository()

	svc := calculator.NewService(engine, calcs, history, jobs)
	pool := calculator.NewWorkerPool(engine, calcs, history, jobs, 2, 10)

	app := fiber.New()
	New(svc, opts...).Register(app)
	return app, pool
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "no error object in %v", body)
	return e["code"].(string)
}

func createCalculator(t *testing.T, app *fiber.App, name, tokens string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/api/v1/calculators",
		`{"name":"`+name+`","tokens":`+tokens+`}`)
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	app, _ := newApp(t)
	status, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestFormulas_Validate(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/validate", `{"tokens":`+circleTokens+`}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, body = do(t, app, http.MethodPost, "/api/v1/formulas/validate",
		`{"tokens":[{"kind":"grouping","symbol":"(","side":"open"},{"kind":"constant","symbol":"1"}]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "UnbalancedGrouping", errorCode(t, body))
	assert.Equal(t, 0.0, body["error"].(map[string]interface{})["position"])
}

func TestFormulas_Parse(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/parse", `{"tokens":`+circleTokens+`}`)
	require.Equal(t, http.StatusOK, status)
	tree := body["tree"].(map[string]interface{})
	assert.Equal(t, []interface{}{"r"}, tree["variables"])
	root := tree["root"].(map[string]interface{})
	assert.Equal(t, "binary", root["kind"])
	assert.Equal(t, "*", root["symbol"])

	status, body = do(t, app, http.MethodPost, "/api/v1/formulas/parse", `{"tokens":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "EmptyFormula", errorCode(t, body))
}

func TestFormulas_Execute(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/execute",
		`{"tokens":`+ratioTokens+`,"bindings":{"a":9,"b":4}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.25, body["result"])

	status, body = do(t, app, http.MethodPost, "/api/v1/formulas/execute",
		`{"tokens":`+ratioTokens+`,"bindings":{"a":9,"b":0}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "DivisionByZero", errorCode(t, body))
	assert.Equal(t, 1.0, body["error"].(map[string]interface{})["position"])

	status, body = do(t, app, http.MethodPost, "/api/v1/formulas/execute",
		`{"tokens":`+ratioTokens+`,"bindings":{"a":9}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "UnboundVariable", errorCode(t, body))
}

func TestFormulas_ExecuteAngleMode(t *testing.T) {
	app, _ := newApp(t)
	sin90 := `[
		{"kind":"function","symbol":"sin"},
		{"kind":"grouping","symbol":"(","side":"open"},
		{"kind":"constant","symbol":"90"},
		{"kind":"grouping","symbol":")","side":"close"}
	]`

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/execute",
		`{"tokens":`+sin90+`,"angle_mode":"degrees"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["result"])

	status, body = do(t, app, http.MethodPost, "/api/v1/formulas/execute",
		`{"tokens":`+sin90+`,"angle_mode":"gradians"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", errorCode(t, body))
}

func TestFormulas_Render(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/render", `{"tokens":`+circleTokens+`}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "π × r ^ 2", body["display"])
	assert.Equal(t, "pi * r ^ 2", body["expression"])
	assert.Equal(t, `\pi \times {r}^{2}`, body["latex"])
	assert.Equal(t, "π × r ^ 2", body["concat"])
	assert.Equal(t, map[string]interface{}{"r": "r"}, body["identifiers"])
}

func TestFormulas_CrossCheck(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/crosscheck",
		`{"tokens":`+circleTokens+`,"bindings":{"r":2}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["agree"])
	assert.InDelta(t, 12.566370614359172, body["result"], 1e-12)
}

func TestFormulas_CrossCheckRenamesVariables(t *testing.T) {
	app, _ := newApp(t)
	tokens := `[
		{"kind":"variable","symbol":"pi"},
		{"kind":"operator","symbol":"×"},
		{"kind":"constant","symbol":"π"},
		{"kind":"operator","symbol":"+"},
		{"kind":"variable","symbol":"in"},
		{"kind":"operator","symbol":"+"},
		{"kind":"variable","symbol":"side a"}
	]`

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/crosscheck",
		`{"tokens":`+tokens+`,"bindings":{"pi":2,"in":1,"side a":3}}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "v1 * pi + v0 + v2", body["expression"])
	assert.Equal(t, true, body["agree"])
	assert.InDelta(t, 2*math.Pi+4, body["exported_result"], 1e-12)
}

func TestFail_ExportErrorIsUnprocessable(t *testing.T) {
	app := fiber.New()
	app.Get("/export", func(c *fiber.Ctx) error {
		return fail(c, fmt.Errorf("%w: unexpected token", formula.ErrExport))
	})

	status, body := do(t, app, http.MethodGet, "/export", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ExportFailed", errorCode(t, body))
}

func TestFormulas_BadBody(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/formulas/execute", `{"tokens":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", errorCode(t, body))

	status, body = do(t, app, http.MethodPost, "/api/v1/formulas/execute",
		`{"tokens":[{"kind":"banana","symbol":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", errorCode(t, body))
}

func TestCatalogListings(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/functions", "")
	require.Equal(t, http.StatusOK, status)
	names := make(map[string]bool)
	for _, fn := range body["data"].([]interface{}) {
		names[fn.(map[string]interface{})["name"].(string)] = true
	}
	assert.True(t, names["sqrt"])
	assert.True(t, names["max"])

	status, body = do(t, app, http.MethodGet, "/api/v1/constants", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["data"])

	status, body = do(t, app, http.MethodGet, "/api/v1/operators", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 6)
}

func TestCalculators_CRUD(t *testing.T) {
	app, _ := newApp(t)
	id := createCalculator(t, app, "Circle area", circleTokens)

	status, body := do(t, app, http.MethodGet, "/api/v1/calculators/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Circle area", body["name"])
	assert.Equal(t, "pi * r ^ 2", body["expression"])
	assert.Equal(t, "radians", body["angle_mode"])

	status, body = do(t, app, http.MethodPut, "/api/v1/calculators/"+id,
		`{"name":"Ratio","tokens":`+ratioTokens+`,"angle_mode":"degrees"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a / b", body["expression"])
	assert.Equal(t, "degrees", body["angle_mode"])
	assert.Equal(t, []interface{}{"a", "b"}, body["variables"])

	status, body = do(t, app, http.MethodGet, "/api/v1/calculators", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, 20.0, body["limit"])
	assert.Len(t, body["data"], 1)

	status, _ = do(t, app, http.MethodDelete, "/api/v1/calculators/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodGet, "/api/v1/calculators/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NotFound", errorCode(t, body))
}

func TestCalculators_CreateErrors(t *testing.T) {
	app, _ := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/calculators",
		`{"name":"Broken","tokens":[{"kind":"constant","symbol":"2"},{"kind":"operator","symbol":"+"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ArityMismatch", errorCode(t, body))

	status, body = do(t, app, http.MethodPost, "/api/v1/calculators", `{"name":" ","tokens":`+ratioTokens+`}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", errorCode(t, body))

	status, body = do(t, app, http.MethodGet, "/api/v1/calculators/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", errorCode(t, body))

	status, _ = do(t, app, http.MethodDelete, "/api/v1/calculators/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCalculators_ExecuteAndHistory(t *testing.T) {
	app, _ := newApp(t)
	id := createCalculator(t, app, "Ratio", ratioTokens)

	status, body := do(t, app, http.MethodPost, "/api/v1/calculators/"+id+"/execute", `{"bindings":{"a":1,"b":4}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.25, body["result"])

	status, body = do(t, app, http.MethodPost, "/api/v1/calculators/"+id+"/execute", `{"bindings":{"a":1,"b":0}}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "DivisionByZero", errorCode(t, body))
	rec := body["record"].(map[string]interface{})
	assert.Equal(t, "DivisionByZero", rec["error_code"])
	assert.NotContains(t, rec, "result")

	status, body = do(t, app, http.MethodGet, "/api/v1/calculators/"+id+"/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["total"])
	assert.Len(t, body["data"], 2)

	status, body = do(t, app, http.MethodGet, "/api/v1/history?limit=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, 1.0, body["limit"])

	status, _ = do(t, app, http.MethodGet, "/api/v1/calculators/"+uuid.NewString()+"/history", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBatch_LeftPendingWithoutRunner(t *testing.T) {
	app, _ := newApp(t)
	id := createCalculator(t, app, "Ratio", ratioTokens)

	status, body := do(t, app, http.MethodPost, "/api/v1/calculators/"+id+"/batch",
		`{"bindings":[{"a":1,"b":2},{"a":3,"b":4}]}`)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "PENDING", body["status"])
	jobID := body["job_id"].(string)

	status, body = do(t, app, http.MethodGet, "/api/v1/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, status)
	job := body["job"].(map[string]interface{})
	assert.Equal(t, "PENDING", job["status"])
	assert.Equal(t, 2.0, job["total_records"])
	assert.Equal(t, 0.0, body["progress"])

	status, body = do(t, app, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestBatch_RunsWithRunner(t *testing.T) {
	var pool *calculator.WorkerPool
	app, pool := newApp(t, WithJobRunner(func(job *entity.BatchJob) {
		_, err := pool.Run(context.Background(), job)
		assert.NoError(t, err)
	}))
	id := createCalculator(t, app, "Ratio", ratioTokens)

	status, body := do(t, app, http.MethodPost, "/api/v1/calculators/"+id+"/batch",
		`{"bindings":[{"a":1,"b":2},{"a":3,"b":0},{"a":5,"b":4}]}`)
	require.Equal(t, http.StatusAccepted, status)
	jobID := body["job_id"].(string)

	status, body = do(t, app, http.MethodGet, "/api/v1/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, status)
	job := body["job"].(map[string]interface{})
	assert.Equal(t, "COMPLETED", job["status"])
	assert.Equal(t, 2.0, job["processed_records"])
	assert.Equal(t, 1.0, job["failed_records"])
	assert.Equal(t, 100.0, body["progress"])

	status, body = do(t, app, http.MethodGet, "/api/v1/jobs/"+jobID+"/results", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 3)
}

func TestBatch_Errors(t *testing.T) {
	app, _ := newApp(t)
	id := createCalculator(t, app, "Ratio", ratioTokens)

	status, body := do(t, app, http.MethodPost, "/api/v1/calculators/"+id+"/batch", `{"bindings":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", errorCode(t, body))

	status, _ = do(t, app, http.MethodPost, "/api/v1/calculators/"+uuid.NewString()+"/batch", `{"bindings":[{"a":1}]}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/results", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStats(t *testing.T) {
	app, _ := newApp(t)
	createCalculator(t, app, "Circle area", circleTokens)
	createCalculator(t, app, "Ratio", ratioTokens)

	status, body := do(t, app, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["calculators"])
	assert.Equal(t, 2.0, body["cached_formulas"])
}
