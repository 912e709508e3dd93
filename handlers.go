package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

/*** Shared helpers ***/

// parseID reads the :id path segment. Anything that is not a positive
// integer is answered with 404, as for an unknown quiz.
func parseID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		renderError(c, notFound("quiz", 0))
		return 0, false
	}
	return uint(n), true
}

// renderError maps service errors onto status codes and the error page.
func renderError(c *gin.Context, err error) {
	var nf *NotFoundError
	var ve *ValidationError
	var ie *IntegrityError
	switch {
	case errors.As(err, &nf):
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Status":  http.StatusNotFound,
			"Title":   "Not found",
			"Message": "The page you requested does not exist.",
		})
	case errors.As(err, &ve):
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Status":  http.StatusBadRequest,
			"Title":   "Invalid input",
			"Message": "Please correct the errors below.",
			"Fields":  ve.Fields,
		})
	case errors.As(err, &ie):
		log.Printf("integrity error: %v", err)
		c.HTML(http.StatusConflict, "error.html", gin.H{
			"Status":  http.StatusConflict,
			"Title":   "Conflict",
			"Message": "The change could not be saved because it conflicts with existing data.",
		})
	default:
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Status":  http.StatusInternalServerError,
			"Title":   "Server error",
			"Message": "Something went wrong.",
		})
	}
}

func quizPath(id uint, action string) string {
	return fmt.Sprintf("/%d/%s/", id, action)
}

/*** Browsing ***/

// GET /
func QuizList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		quizzes, err := ListQuizzes(db)
		if err != nil {
			renderError(c, err)
			return
		}
		categories, err := ListCategories(db)
		if err != nil {
			renderError(c, err)
			return
		}
		c.HTML(http.StatusOK, "quiz_list.html", gin.H{
			"Quizzes":    quizzes,
			"Categories": categories,
		})
	}
}

/*** Management ***/

type managePage struct {
	Quizzes      []Quiz
	Categories   []Category
	Stats        map[uint]QuizStat
	CategoryName string
	Errors       map[string]string
}

func renderManage(c *gin.Context, db *gorm.DB, status int, page managePage) {
	var err error
	if page.Quizzes, err = ListQuizzes(db); err != nil {
		renderError(c, err)
		return
	}
	if page.Categories, err = ListCategories(db); err != nil {
		renderError(c, err)
		return
	}
	stats, err := CollectQuizStats(db)
	if err != nil {
		renderError(c, err)
		return
	}
	page.Stats = make(map[uint]QuizStat, len(stats))
	for _, s := range stats {
		page.Stats[s.QuizID] = s
	}
	c.HTML(status, "manage_quiz.html", page)
}

// GET /manage/
func ManageQuizzes(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderManage(c, db, http.StatusOK, managePage{})
	}
}

// POST /categories/
func CreateCategoryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.PostForm("name")
		if _, err := CreateCategory(db, name); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				renderManage(c, db, http.StatusBadRequest, managePage{CategoryName: name, Errors: ve.Fields})
				return
			}
			renderError(c, err)
			return
		}
		c.Redirect(http.StatusFound, "/manage/")
	}
}

// POST /categories/:id/delete/
func DeleteCategoryHandler(db *gorm.DB, store ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := DeleteCategory(db, store, id); err != nil {
			renderError(c, err)
			return
		}
		c.Redirect(http.StatusFound, "/manage/")
	}
}

/*** Quiz authoring ***/

// renderQuizForm shows the create/edit form, filled from the stored quiz on
// GET or from the rejected input after a failed POST.
func renderQuizForm(c *gin.Context, db *gorm.DB, status int, form *QuizForm) {
	categories, err := ListCategories(db)
	if err != nil {
		renderError(c, err)
		return
	}
	form.Categories = categories
	c.HTML(status, "quiz_form.html", form)
}

// handleQuizFormError re-renders on validation failures and falls back to renderError.
func handleQuizFormError(c *gin.Context, db *gorm.DB, form *QuizForm, in QuizInput, imageKey string, err error) {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		renderError(c, err)
		return
	}
	form.fillFromInput(in, imageKey)
	form.Errors = ve.Fields
	renderQuizForm(c, db, http.StatusBadRequest, form)
}

// GET /create/
func CreateQuizPage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		form := newQuizForm("/create/", "Create quiz", nil)
		form.addExtraRows()
		renderQuizForm(c, db, http.StatusOK, form)
	}
}

// POST /create/
func CreateQuizSubmit(db *gorm.DB, store ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		form := newQuizForm("/create/", "Create quiz", nil)
		in, err := parseQuizForm(c)
		if err == nil {
			_, err = CreateQuiz(db, store, in)
		}
		if err != nil {
			handleQuizFormError(c, db, form, in, "", err)
			return
		}
		c.Redirect(http.StatusFound, "/manage/")
	}
}

// GET /:id/edit/
func EditQuizPage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		quiz, err := loadQuiz(db, id)
		if err != nil {
			renderError(c, err)
			return
		}
		form := newQuizForm(quizPath(id, "edit"), "Edit quiz", nil)
		form.fillFromQuiz(quiz)
		renderQuizForm(c, db, http.StatusOK, form)
	}
}

// POST /:id/edit/
func EditQuizSubmit(db *gorm.DB, store ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		quiz, err := loadQuiz(db, id)
		if err != nil {
			renderError(c, err)
			return
		}
		form := newQuizForm(quizPath(id, "edit"), "Edit quiz", nil)
		in, err := parseQuizForm(c)
		if err == nil {
			_, err = EditQuiz(db, store, id, in)
		}
		if err != nil {
			handleQuizFormError(c, db, form, in, quiz.Image, err)
			return
		}
		c.Redirect(http.StatusFound, "/manage/")
	}
}

// GET /:id/delete/
func DeleteQuizPage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		quiz, err := loadQuiz(db, id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.HTML(http.StatusOK, "delete_quiz.html", gin.H{"Quiz": quiz})
	}
}

// POST /:id/delete/
func DeleteQuizSubmit(db *gorm.DB, store ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := DeleteQuiz(db, store, id); err != nil {
			renderError(c, err)
			return
		}
		c.Redirect(http.StatusFound, "/manage/")
	}
}

/*** Taking ***/

type takePage struct {
	Quiz   *TakingQuiz
	Values map[uint][]string
	Errors map[string]string
}

// Checked reports whether optionID was among the re-displayed values for questionID.
func (p takePage) Checked(questionID, optionID uint) bool {
	want := strconv.FormatUint(uint64(optionID), 10)
	for _, v := range p.Values[questionID] {
		if v == want {
			return true
		}
	}
	return false
}

func (p takePage) Value(questionID uint) string {
	if vs := p.Values[questionID]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (p takePage) Error(questionID uint) string {
	return p.Errors[answerField(questionID)]
}

// GET /:id/take/
func TakeQuiz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		quiz, err := GetQuizForTaking(db, id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.HTML(http.StatusOK, "take_quiz.html", takePage{Quiz: quiz})
	}
}

// POST /:id/save/
func SaveAnswers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		values, err := parseAnswerForm(c)
		if err == nil {
			_, err = SubmitAnswers(db, id, takerID(c), values)
		}
		if err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				renderError(c, err)
				return
			}
			quiz, qerr := GetQuizForTaking(db, id)
			if qerr != nil {
				renderError(c, qerr)
				return
			}
			c.HTML(http.StatusBadRequest, "take_quiz.html", takePage{Quiz: quiz, Values: values, Errors: ve.Fields})
			return
		}
		c.Redirect(http.StatusFound, quizPath(id, "results"))
	}
}

// GET /:id/save/
func SaveAnswersRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		c.Redirect(http.StatusFound, quizPath(id, "take"))
	}
}

// GET /:id/results/
func QuizResults(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		res, err := ComputeResult(db, id, takerID(c))
		if err != nil {
			renderError(c, err)
			return
		}
		c.HTML(http.StatusOK, "quiz_result.html", res)
	}
}
