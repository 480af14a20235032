package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastexam/exam-portal/internal/backend"
	"github.com/fastexam/exam-portal/internal/credstore"
	"github.com/fastexam/exam-portal/internal/exam"
	"github.com/fastexam/exam-portal/internal/middleware"
	"github.com/fastexam/exam-portal/internal/validator"
)

const testSessionID = "11111111-1111-1111-1111-111111111111"

// fakeExamAPI serves the generate and submit endpoints the handlers call.
func fakeExamAPI(t *testing.T, questions []exam.Question, evaluation backend.Evaluation) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/exam/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(questions)
	})
	mux.HandleFunc("/exam/answers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/exam/submit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(evaluation)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, apiURL string) (*gin.Engine, *exam.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()
	log := zerolog.Nop()

	store := credstore.NewMemory()
	api := backend.NewClient(apiURL, store, 5*time.Second, 30*time.Second, log)
	manager := exam.NewManager(exam.RealClock, 30*time.Minute, api, log)

	h := NewExamHandler(api, manager, log)

	router := gin.New()
	router.SetFuncMap(template.FuncMap{
		"add": func(a, b int) int { return a + b },
	})
	router.LoadHTMLGlob("../../web/templates/*.html")
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeySessionID, testSessionID)
		c.Next()
	})

	router.POST("/exam/create", h.PostCreate)
	router.GET("/exam/center", h.Center)
	session := router.Group("/api/v1/session")
	{
		session.POST("/start", h.Start)
		session.POST("/answer", h.Answer)
		session.POST("/next", h.Next)
		session.POST("/prev", h.Prev)
		session.POST("/submit", h.Submit)
	}
	return router, manager
}

func fiveQuestions() []exam.Question {
	return []exam.Question{
		{ID: 1, Text: "Define entropy.", Marks: 10},
		{ID: 2, Text: "State the second law.", Marks: 10},
		{ID: 3, Text: "Explain heat engines.", Marks: 10},
		{ID: 4, Text: "Derive Carnot efficiency.", Marks: 10},
		{ID: 5, Text: "Discuss reversibility.", Marks: 10},
	}
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func envelopeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestCenterMalformedPayloadRendersEmptyExam(t *testing.T) {
	router, manager := newTestRouter(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/exam/center?data="+url.QueryEscape("{not json"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No exam loaded")

	sess, ok := manager.Get(testSessionID)
	require.True(t, ok)
	assert.Equal(t, 0, sess.Snapshot().Total)
}

func TestCenterMissingPayloadKeepsExistingSession(t *testing.T) {
	router, manager := newTestRouter(t, "http://unused.invalid")
	manager.Create(testSessionID, fiveQuestions())

	req := httptest.NewRequest(http.MethodGet, "/exam/center", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	sess, ok := manager.Get(testSessionID)
	require.True(t, ok)
	assert.Equal(t, 5, sess.Snapshot().Total)
}

func TestGenerateExamRoundTrip(t *testing.T) {
	srv := fakeExamAPI(t, fiveQuestions(), backend.Evaluation{})
	router, manager := newTestRouter(t, srv.URL)

	form := url.Values{
		"subject":         {"Physics"},
		"topic":           {"Thermodynamics"},
		"num_questions":   {"5"},
		"marks_each":      {"10"},
		"exam_duration":   {"30"},
		"deadline_choice": {"soft_deadline"},
	}
	req := httptest.NewRequest(http.MethodPost, "/exam/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/exam/center?data="))

	req = httptest.NewRequest(http.MethodGet, location, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Question 1 of 5")
	assert.Contains(t, rec.Body.String(), "Define entropy.")

	sess, ok := manager.Get(testSessionID)
	require.True(t, ok)
	snap := sess.Snapshot()
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 0, snap.Index)
}

func TestCenterRendersResultPanelAfterSubmit(t *testing.T) {
	srv := fakeExamAPI(t, nil, backend.Evaluation{})
	router, manager := newTestRouter(t, srv.URL)
	manager.Create(testSessionID, fiveQuestions())
	require.NoError(t, manager.Start(testSessionID))
	_, err := manager.Submit(context.Background(), testSessionID)
	require.NoError(t, err)

	// A reload after submission lands on the result panel, not on live
	// navigation controls.
	req := httptest.NewRequest(http.MethodGet, "/exam/center", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<section id="exam-panel" hidden>`)
	assert.Contains(t, body, `<section id="result-panel" >`)
	assert.Contains(t, body, "Your exam has been recorded.")
}

func TestPostCreateValidationReRendersForm(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused.invalid")

	form := url.Values{
		"subject": {"Physics"},
		// topic, num_questions and deadline_choice are missing
	}
	req := httptest.NewRequest(http.MethodPost, "/exam/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Create Exam")
	assert.Contains(t, rec.Body.String(), `value="Physics"`)
}

func TestSessionLifecycleThroughAPI(t *testing.T) {
	srv := fakeExamAPI(t, fiveQuestions(), backend.Evaluation{FinalFeedback: "Well done"})
	router, manager := newTestRouter(t, srv.URL)
	manager.Create(testSessionID, fiveQuestions())

	rec := postJSON(router, "/api/v1/session/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelopeData(t, rec)
	snap := data["snapshot"].(map[string]interface{})
	assert.Equal(t, "in_progress", snap["state"])

	rec = postJSON(router, "/api/v1/session/answer", `{"text":"Disorder measure."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(router, "/api/v1/session/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = envelopeData(t, rec)
	snap = data["snapshot"].(map[string]interface{})
	assert.Equal(t, float64(1), snap["index"])
	assert.Equal(t, "State the second law.", snap["question"].(map[string]interface{})["text"])

	rec = postJSON(router, "/api/v1/session/prev", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = envelopeData(t, rec)
	snap = data["snapshot"].(map[string]interface{})
	assert.Equal(t, float64(0), snap["index"])
	assert.Equal(t, "Disorder measure.", snap["answer"])

	rec = postJSON(router, "/api/v1/session/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = envelopeData(t, rec)
	snap = data["snapshot"].(map[string]interface{})
	assert.Equal(t, "submitted", snap["state"])
	evaluation := data["evaluation"].(map[string]interface{})
	assert.Equal(t, "Well done", evaluation["final_feedback"])
}

func TestNextAtLastQuestionReturnsNotice(t *testing.T) {
	srv := fakeExamAPI(t, nil, backend.Evaluation{})
	router, manager := newTestRouter(t, srv.URL)
	manager.Create(testSessionID, []exam.Question{{ID: 1, Text: "Only one.", Marks: 5}})
	require.NoError(t, manager.Start(testSessionID))

	rec := postJSON(router, "/api/v1/session/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelopeData(t, rec)
	assert.NotEmpty(t, data["notice"])
	snap := data["snapshot"].(map[string]interface{})
	assert.Equal(t, float64(0), snap["index"])
}

func TestSessionOpsWithoutSessionReturn404(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused.invalid")

	for _, path := range []string{
		"/api/v1/session/start",
		"/api/v1/session/next",
		"/api/v1/session/prev",
		"/api/v1/session/submit",
	} {
		rec := postJSON(router, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "SESSION_NOT_FOUND", path)
	}
}

func TestAnswerBeforeStartRejected(t *testing.T) {
	router, manager := newTestRouter(t, "http://unused.invalid")
	manager.Create(testSessionID, fiveQuestions())

	rec := postJSON(router, "/api/v1/session/answer", `{"text":"early"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_NOT_STARTED")
}

func TestSubmitTwiceRejected(t *testing.T) {
	srv := fakeExamAPI(t, nil, backend.Evaluation{})
	router, manager := newTestRouter(t, srv.URL)
	manager.Create(testSessionID, fiveQuestions())
	require.NoError(t, manager.Start(testSessionID))

	rec := postJSON(router, "/api/v1/session/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(router, "/api/v1/session/submit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_SUBMITTED")
}
