package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testApp struct {
	db     *gorm.DB
	store  *FSImageStore
	router *gin.Engine
	cookie *http.Cookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	store := newTestStore(t)
	cfg := &Config{CORSOrigins: []string{"http://localhost:8080"}}
	return &testApp{db: db, store: store, router: setupRouter(db, store, cfg)}
}

// do sends the request with the app's taker cookie and remembers a new one.
func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			a.cookie = c
		}
	}
	return w
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *testApp) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func createForm(title string) url.Values {
	return url.Values{
		"title":                            {title},
		"questions-TOTAL_FORMS":            {"2"},
		"questions-0-text":                 {"Capital of France?"},
		"questions-0-question_type":        {"TEXT"},
		"questions-0-options-TOTAL_FORMS":  {"4"},
		"questions-0-options-0-text":       {"Paris"},
		"questions-0-options-0-is_correct": {"on"},
		"questions-1-text":                 {""},
		"questions-1-question_type":        {"TEXT"},
		"questions-1-options-TOTAL_FORMS":  {"4"},
	}
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	w := app.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestNotFoundPages(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/abc/take/", "/999/take/", "/999/edit/", "/999/delete/", "/999/results/", "/0/take/"} {
		w := app.get(path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := app.postForm("/999/save/", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.postForm("/999/delete/", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthoringAndTakingRoundTrip(t *testing.T) {
	app := newTestApp(t)

	w := app.get("/create/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="questions-TOTAL_FORMS"`)
	require.NotNil(t, app.cookie, "taker cookie issued")

	w = app.postForm("/create/", createForm("Capitals"))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/manage/", w.Header().Get("Location"))

	quizzes, err := ListQuizzes(app.db)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	quiz, err := loadQuiz(app.db, quizzes[0].ID)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1, "blank extra row ignored")
	base := "/" + idString(quiz.ID)

	w = app.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Capitals")

	w = app.get("/manage/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), base+"/edit/")

	w = app.get(base + "/take/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Capital of France?")
	assert.NotContains(t, w.Body.String(), "Paris", "answer not leaked")

	w = app.get(base + "/save/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, base+"/take/", w.Header().Get("Location"))

	w = app.postForm(base+"/save/", url.Values{answerField(quiz.Questions[0].ID): {" paris "}})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, base+"/results/", w.Header().Get("Location"))

	w = app.get(base + "/results/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Your score: 1 / 1")

	// A different visitor has not answered yet.
	stranger := &testApp{db: app.db, store: app.store, router: app.router}
	w = stranger.get(base + "/results/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Your score: 0 / 1")

	w = app.get(base + "/delete/")
	assert.Equal(t, http.StatusOK, w.Code)
	w = app.postForm(base+"/delete/", url.Values{})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/manage/", w.Header().Get("Location"))

	w = app.get(base + "/results/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateQuizFormErrors(t *testing.T) {
	app := newTestApp(t)

	w := app.postForm("/create/", createForm(""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")
	assert.Contains(t, w.Body.String(), "Capital of France?", "submitted rows re-displayed")

	form := createForm("Two answers")
	form.Set("questions-0-options-1-text", "paris")
	form.Set("questions-0-options-1-is_correct", "on")
	w = app.postForm("/create/", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "only one correct answer")

	w = app.postForm("/create/", url.Values{"title": {"No management form"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	form = createForm("Oversized formset")
	form.Set("questions-TOTAL_FORMS", "1001")
	w = app.postForm("/create/", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please submit at most 1000 forms.")

	assert.Zero(t, countRows(t, app.db, &Quiz{}))
}

func TestEditQuizHandler(t *testing.T) {
	app := newTestApp(t)
	quiz := mustCreateQuiz(t, app.db, capitalsInput())
	base := "/" + idString(quiz.ID)

	w := app.get(base + "/edit/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Capital of Australia?")

	q0 := quiz.Questions[0]
	form := url.Values{
		"title":                            {"Capitals (edited)"},
		"questions-TOTAL_FORMS":            {"1"},
		"questions-0-id":                   {idString(q0.ID)},
		"questions-0-text":                 {"Capital of Spain?"},
		"questions-0-question_type":        {"TEXT"},
		"questions-0-options-TOTAL_FORMS":  {"1"},
		"questions-0-options-0-id":         {idString(q0.Options[0].ID)},
		"questions-0-options-0-text":       {"Madrid"},
		"questions-0-options-0-is_correct": {"on"},
	}
	w = app.postForm(base+"/edit/", form)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	after, err := loadQuiz(app.db, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "Capitals (edited)", after.Title)
	assert.Equal(t, "Madrid", after.Questions[0].Options[0].Text)
	assert.Len(t, after.Questions, 2)

	form.Set("questions-0-id", "999999")
	w = app.postForm(base+"/edit/", form)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateQuizWithImageUpload(t *testing.T) {
	app := newTestApp(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range createForm("Illustrated") {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	part, err := mw.CreateFormFile("image", "cover.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/create/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := app.do(req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	var quiz Quiz
	require.NoError(t, app.db.First(&quiz).Error)
	require.NotEmpty(t, quiz.Image)

	w = app.get(imageURL(quiz.Image))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
}

func TestSaveAnswersInvalidChoice(t *testing.T) {
	app := newTestApp(t)
	quiz := mustCreateQuiz(t, app.db, capitalsInput())
	base := "/" + idString(quiz.ID)

	w := app.postForm(base+"/save/", url.Values{answerField(quiz.Questions[1].ID): {"abc"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Select a valid choice.")

	w = app.postForm(base+"/save/", url.Values{answerField(quiz.Questions[1].ID): {"999999"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryHandlers(t *testing.T) {
	app := newTestApp(t)

	w := app.postForm("/categories/", url.Values{"name": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")

	w = app.postForm("/categories/", url.Values{"name": {"Science"}})
	require.Equal(t, http.StatusFound, w.Code)

	var cat Category
	require.NoError(t, app.db.First(&cat).Error)
	assert.Equal(t, "Science", cat.Name)

	w = app.postForm("/categories/"+idString(cat.ID)+"/delete/", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Zero(t, countRows(t, app.db, &Category{}))

	w = app.postForm("/categories/"+idString(cat.ID)+"/delete/", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t)
	quiz := mustCreateQuiz(t, app.db, capitalsInput())
	_, err := SubmitAnswers(app.db, quiz.ID, newTaker(t, app.db), nil)
	require.NoError(t, err)

	w := app.get("/stats/")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalQuizzes)
	assert.Equal(t, int64(2), resp.TotalQuestions)
	assert.Equal(t, int64(1), resp.TotalSubmissions)
	assert.Equal(t, int64(1), resp.TotalTakers)
	require.Len(t, resp.Quizzes, 1)
	assert.Equal(t, int64(2), resp.Quizzes[0].Questions)
	assert.Equal(t, int64(1), resp.Quizzes[0].Submissions)
}

func TestStatsDoesNotRegisterTakers(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 5; i++ {
		w := app.get("/stats/")
		require.Equal(t, http.StatusOK, w.Code)
		for _, c := range w.Result().Cookies() {
			assert.NotEqual(t, cookieName, c.Name)
		}
	}
	assert.Zero(t, countRows(t, app.db, &Taker{}))

	app.get("/")
	assert.Equal(t, int64(1), countRows(t, app.db, &Taker{}))
}
