package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	maxFormRows          = 1000
	extraQuestionRows    = 1
	extraNewOptionRows   = 4
	extraExistingOptRows = 1
)

/*** Parsing ***/

// parseQuizForm reads the quiz + nested question/option formset.
func parseQuizForm(c *gin.Context) (QuizInput, error) {
	verr := &ValidationError{}
	in := QuizInput{
		Title:      c.PostForm("title"),
		ClearImage: isChecked(c.PostForm("image-clear")),
	}

	if raw := strings.TrimSpace(c.PostForm("category")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			verr.Add("category", "Select a valid choice. That choice is not one of the available choices.")
		} else {
			cid := uint(id)
			in.CategoryID = &cid
		}
	}

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		in.Image = fh
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		verr.Add("image", "The submitted data was not a file. Check the encoding type on the form.")
	}

	total, err := formCount(c, "questions-TOTAL_FORMS")
	switch {
	case errors.Is(err, errTooManyRows):
		verr.Add("__all__", fmt.Sprintf("Please submit at most %d forms.", maxFormRows))
		return in, verr
	case err != nil:
		verr.Add("__all__", "ManagementForm data is missing or has been tampered with.")
		return in, verr
	}
	in.Questions = make([]QuestionInput, 0, total)
	for i := 0; i < total; i++ {
		prefix := questionPrefix(i)
		q := QuestionInput{
			Text:   c.PostForm(prefix + "text"),
			Type:   QuestionType(strings.ToUpper(strings.TrimSpace(c.PostForm(prefix + "question_type")))),
			Delete: isChecked(c.PostForm(prefix + "DELETE")),
		}
		q.ID = formID(c, prefix+"id", verr)

		optTotal, err := formCount(c, prefix+"options-TOTAL_FORMS")
		if errors.Is(err, errTooManyRows) {
			verr.Add(prefix+"options", fmt.Sprintf("Please submit at most %d options.", maxFormRows))
		}
		blankOptions := true
		for j := 0; j < optTotal; j++ {
			op := optionPrefix(i, j)
			o := OptionInput{
				Text:      c.PostForm(op + "text"),
				IsCorrect: isChecked(c.PostForm(op + "is_correct")),
				Delete:    isChecked(c.PostForm(op + "DELETE")),
			}
			o.ID = formID(c, op+"id", verr)
			if o.ID == 0 && strings.TrimSpace(o.Text) == "" {
				o.Delete = true // untouched extra row
			} else {
				blankOptions = false
			}
			q.Options = append(q.Options, o)
		}
		if q.ID == 0 && strings.TrimSpace(q.Text) == "" && blankOptions {
			q.Delete = true // untouched extra row
		}
		in.Questions = append(in.Questions, q)
	}
	return in, verr.Err()
}

// parseAnswerForm collects question_<id> values from a taking form.
func parseAnswerForm(c *gin.Context) (map[uint][]string, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"__all__": "Malformed form data."}}
	}
	values := map[uint][]string{}
	for key, vs := range c.Request.PostForm {
		raw, ok := strings.CutPrefix(key, "question_")
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		values[uint(id)] = vs
	}
	return values, nil
}

var (
	errMissingCount = errors.New("form count missing")
	errTooManyRows  = errors.New("too many form rows")
)

// formCount reads a TOTAL_FORMS value. Counts above maxFormRows are rejected
// rather than truncated so no submitted row is dropped silently.
func formCount(c *gin.Context, key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(c.PostForm(key)))
	if err != nil || n < 0 {
		return 0, errMissingCount
	}
	if n > maxFormRows {
		return 0, errTooManyRows
	}
	return n, nil
}

func formID(c *gin.Context, key string, verr *ValidationError) uint {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		verr.Add(key, "Select a valid choice. That choice is not one of the available choices.")
		return 0
	}
	return uint(n)
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off":
		return false
	}
	return true
}

/*** Views for rendering ***/

type OptionRow struct {
	Index     int
	ID        uint
	Text      string
	IsCorrect bool
	Delete    bool
}

type QuestionRow struct {
	Index   int
	ID      uint
	Text    string
	Type    QuestionType
	Delete  bool
	Options []OptionRow
}

type QuizForm struct {
	Action     string
	Heading    string
	Title      string
	CategoryID uint
	Categories []Category
	ImageURL   string
	Questions  []QuestionRow
	Types      []QuestionType
	Errors     map[string]string
}

func (f *QuizForm) Error(field string) string {
	return f.Errors[field]
}

func newQuizForm(action, heading string, categories []Category) *QuizForm {
	return &QuizForm{
		Action:     action,
		Heading:    heading,
		Categories: categories,
		Types:      QuestionTypes,
		Errors:     map[string]string{},
	}
}

// fillFromQuiz populates the form with the stored quiz.
func (f *QuizForm) fillFromQuiz(q *Quiz) {
	f.Title = q.Title
	if q.CategoryID != nil {
		f.CategoryID = *q.CategoryID
	}
	f.ImageURL = imageURL(q.Image)
	for _, qq := range q.Questions {
		row := QuestionRow{ID: qq.ID, Text: qq.Text, Type: qq.Type}
		for _, o := range qq.Options {
			row.Options = append(row.Options, OptionRow{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		f.Questions = append(f.Questions, row)
	}
	f.addExtraRows()
}

// fillFromInput re-displays submitted values after a validation failure.
func (f *QuizForm) fillFromInput(in QuizInput, imageKey string) {
	f.Title = in.Title
	if in.CategoryID != nil {
		f.CategoryID = *in.CategoryID
	}
	f.ImageURL = imageURL(imageKey)
	for _, qi := range in.Questions {
		row := QuestionRow{ID: qi.ID, Text: qi.Text, Type: qi.Type, Delete: qi.Delete && qi.ID != 0}
		for _, oi := range qi.Options {
			row.Options = append(row.Options, OptionRow{ID: oi.ID, Text: oi.Text, IsCorrect: oi.IsCorrect, Delete: oi.Delete && oi.ID != 0})
		}
		f.Questions = append(f.Questions, row)
	}
	f.addExtraRows()
}

func (f *QuizForm) addExtraRows() {
	hasBlank := false
	for _, q := range f.Questions {
		if q.ID == 0 && strings.TrimSpace(q.Text) == "" {
			hasBlank = true
		}
	}
	if !hasBlank {
		for i := 0; i < extraQuestionRows; i++ {
			f.Questions = append(f.Questions, QuestionRow{Type: QuestionText})
		}
	}
	for i := range f.Questions {
		q := &f.Questions[i]
		extra := extraExistingOptRows
		if len(q.Options) == 0 && q.ID == 0 {
			extra = extraNewOptionRows
		}
		for _, o := range q.Options {
			if o.ID == 0 && strings.TrimSpace(o.Text) == "" {
				extra = 0
			}
		}
		for j := 0; j < extra; j++ {
			q.Options = append(q.Options, OptionRow{})
		}
		q.Index = i
		for j := range q.Options {
			q.Options[j].Index = j
		}
	}
}
