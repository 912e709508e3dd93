package main

import (
	"fmt"
	"log"
	"mime/multipart"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

/*** Inputs ***/

// Blank rows from the form arrive with Delete set, so slice positions always
// match the form's row indices.

type OptionInput struct {
	ID        uint
	Text      string `form:"text" validate:"required,max=200"`
	IsCorrect bool
	Delete    bool
}

type QuestionInput struct {
	ID      uint
	Text    string        `form:"text" validate:"required,max=200"`
	Type    QuestionType  `form:"question_type" validate:"required,oneof=TEXT RADIO CHECKBOX"`
	Delete  bool          `validate:"-"`
	Options []OptionInput `validate:"-"`
}

type QuizInput struct {
	Title      string                `form:"title" validate:"required,max=200"`
	CategoryID *uint                 `validate:"-"`
	Image      *multipart.FileHeader `validate:"-"`
	ClearImage bool                  `validate:"-"`
	Questions  []QuestionInput       `validate:"-"`
}

/*** Validation ***/

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func collectFieldErrors(err error, prefix string, into *ValidationError) {
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		into.Add(prefix+"__all__", err.Error())
		return
	}
	for _, fe := range verrs {
		into.Add(prefix+fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "oneof":
		return "Select a valid choice."
	}
	return "Enter a valid value."
}

func questionPrefix(i int) string  { return fmt.Sprintf("questions-%d-", i) }
func optionPrefix(i, j int) string { return fmt.Sprintf("questions-%d-options-%d-", i, j) }

// validateQuizInput checks in against the field rules and the per-kind option
// invariants. existing carries the stored questions when editing.
func validateQuizInput(db *gorm.DB, in *QuizInput, existing map[uint]Question) error {
	in.Title = strings.TrimSpace(in.Title)
	verr := &ValidationError{}
	collectFieldErrors(validate.Struct(in), "", verr)
	if in.Image != nil && in.ClearImage {
		verr.Add("image", "Please either submit a file or check the clear checkbox, not both.")
	}

	if in.CategoryID != nil {
		var count int64
		if err := db.Model(&Category{}).Where("id = ?", *in.CategoryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			verr.Add("category", "Select a valid choice. That choice is not one of the available choices.")
		}
	}

	for i := range in.Questions {
		q := &in.Questions[i]
		if q.Delete {
			continue
		}
		q.Text = strings.TrimSpace(q.Text)
		prefix := questionPrefix(i)
		collectFieldErrors(validate.Struct(q), prefix, verr)

		// Options stored but not listed in the input stay as they are.
		listed := map[uint]bool{}
		correct, kept := 0, 0
		for j := range q.Options {
			o := &q.Options[j]
			if o.ID != 0 {
				listed[o.ID] = true
			}
			if o.Delete {
				continue
			}
			o.Text = strings.TrimSpace(o.Text)
			collectFieldErrors(validate.Struct(o), optionPrefix(i, j), verr)
			kept++
			if o.IsCorrect {
				correct++
			}
		}
		if q.ID != 0 {
			for _, o := range existing[q.ID].Options {
				if listed[o.ID] {
					continue
				}
				kept++
				if o.IsCorrect {
					correct++
				}
			}
		}

		switch q.Type {
		case QuestionText:
			if correct > 1 {
				verr.Add(prefix+"options", "A text question can have only one correct answer.")
			}
		case QuestionRadio:
			if kept > 0 && correct != 1 {
				verr.Add(prefix+"options", "A single-choice question needs exactly one correct option.")
			}
		}
	}
	return verr.Err()
}

/*** Queries ***/

func ListQuizzes(db *gorm.DB) ([]Quiz, error) {
	var qs []Quiz
	if err := db.Preload("Category").Order("id").Find(&qs).Error; err != nil {
		return nil, err
	}
	return qs, nil
}

func ListCategories(db *gorm.DB) ([]Category, error) {
	var cs []Category
	if err := db.Order("name, id").Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

// loadQuiz fetches a quiz with its questions and options in insertion order.
func loadQuiz(db *gorm.DB, quizID uint) (*Quiz, error) {
	var quiz Quiz
	err := db.Preload("Category").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&quiz, quizID).Error
	if err != nil {
		return nil, classifyDBError(err, "quiz", quizID)
	}
	return &quiz, nil
}

/*** Quiz authoring ***/

func CreateQuiz(db *gorm.DB, store ImageStore, in QuizInput) (*Quiz, error) {
	if err := validateQuizInput(db, &in, nil); err != nil {
		return nil, err
	}

	imageKey := ""
	if in.Image != nil {
		key, err := saveQuizImage(store, in.Image)
		if err != nil {
			return nil, err
		}
		imageKey = key
	}

	quiz := Quiz{Title: in.Title, CategoryID: in.CategoryID, Image: imageKey}
	for _, qi := range in.Questions {
		if qi.Delete {
			continue
		}
		q := Question{Text: qi.Text, Type: qi.Type}
		for _, oi := range qi.Options {
			if oi.Delete {
				continue
			}
			q.Options = append(q.Options, Option{Text: oi.Text, IsCorrect: oi.IsCorrect})
		}
		quiz.Questions = append(quiz.Questions, q)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&quiz).Error
	})
	if err != nil {
		discardImage(store, imageKey)
		return nil, classifyDBError(err, "quiz", 0)
	}
	log.Printf("created quiz %d (%q) with %d questions", quiz.ID, quiz.Title, len(quiz.Questions))
	return &quiz, nil
}

func EditQuiz(db *gorm.DB, store ImageStore, quizID uint, in QuizInput) (*Quiz, error) {
	quiz, err := loadQuiz(db, quizID)
	if err != nil {
		return nil, err
	}

	existing := make(map[uint]Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		existing[q.ID] = q
	}
	if err := checkOwnership(in, existing); err != nil {
		return nil, err
	}
	if err := validateQuizInput(db, &in, existing); err != nil {
		return nil, err
	}

	oldImage := quiz.Image
	newImage := oldImage
	if in.Image != nil {
		key, err := saveQuizImage(store, in.Image)
		if err != nil {
			return nil, err
		}
		newImage = key
	} else if in.ClearImage {
		newImage = ""
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Quiz{}).Where("id = ?", quizID).Updates(map[string]interface{}{
			"title":       in.Title,
			"category_id": in.CategoryID,
			"image":       newImage,
		}).Error; err != nil {
			return err
		}
		for _, qi := range in.Questions {
			if err := applyQuestion(tx, quizID, qi); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if newImage != oldImage {
			discardImage(store, newImage)
		}
		return nil, classifyDBError(err, "quiz", quizID)
	}
	if newImage != oldImage {
		discardImage(store, oldImage)
	}
	return loadQuiz(db, quizID)
}

// checkOwnership rejects question and option ids that belong elsewhere.
func checkOwnership(in QuizInput, existing map[uint]Question) error {
	for _, qi := range in.Questions {
		if qi.ID == 0 {
			continue
		}
		q, ok := existing[qi.ID]
		if !ok {
			return notFound("question", qi.ID)
		}
		opts := make(map[uint]bool, len(q.Options))
		for _, o := range q.Options {
			opts[o.ID] = true
		}
		for _, oi := range qi.Options {
			if oi.ID != 0 && !opts[oi.ID] {
				return notFound("option", oi.ID)
			}
		}
	}
	return nil
}

func applyQuestion(tx *gorm.DB, quizID uint, qi QuestionInput) error {
	switch {
	case qi.Delete && qi.ID == 0:
		return nil
	case qi.Delete:
		return deleteQuestions(tx, []uint{qi.ID})
	case qi.ID == 0:
		q := Question{QuizID: quizID, Text: qi.Text, Type: qi.Type}
		for _, oi := range qi.Options {
			if !oi.Delete {
				q.Options = append(q.Options, Option{Text: oi.Text, IsCorrect: oi.IsCorrect})
			}
		}
		return tx.Create(&q).Error
	}

	if err := tx.Model(&Question{}).Where("id = ?", qi.ID).Updates(map[string]interface{}{
		"text": qi.Text,
		"type": qi.Type,
	}).Error; err != nil {
		return err
	}
	for _, oi := range qi.Options {
		switch {
		case oi.Delete && oi.ID == 0:
		case oi.Delete:
			if err := deleteOption(tx, oi.ID); err != nil {
				return err
			}
		case oi.ID == 0:
			o := Option{QuestionID: qi.ID, Text: oi.Text, IsCorrect: oi.IsCorrect}
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
		default:
			if err := tx.Model(&Option{}).Where("id = ?", oi.ID).Updates(map[string]interface{}{
				"text":       oi.Text,
				"is_correct": oi.IsCorrect,
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func deleteOption(tx *gorm.DB, optionID uint) error {
	if err := tx.Where("selected_option_id = ?", optionID).Delete(&Answer{}).Error; err != nil {
		return err
	}
	return tx.Delete(&Option{}, optionID).Error
}

func deleteQuestions(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("question_id IN ?", ids).Delete(&Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("question_id IN ?", ids).Delete(&Option{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&Question{}).Error
}

// deleteQuizTx removes the quiz and everything hanging off it. Foreign keys
// cascade too, but not every driver enforces them.
func deleteQuizTx(tx *gorm.DB, quizID uint) error {
	var questionIDs []uint
	if err := tx.Model(&Question{}).Where("quiz_id = ?", quizID).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}
	if err := tx.Where("submission_id IN (?)",
		tx.Model(&Submission{}).Select("id").Where("quiz_id = ?", quizID),
	).Delete(&Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("quiz_id = ?", quizID).Delete(&Submission{}).Error; err != nil {
		return err
	}
	if err := deleteQuestions(tx, questionIDs); err != nil {
		return err
	}
	return tx.Delete(&Quiz{}, quizID).Error
}

func DeleteQuiz(db *gorm.DB, store ImageStore, quizID uint) error {
	var quiz Quiz
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&quiz, quizID).Error; err != nil {
			return err
		}
		return deleteQuizTx(tx, quizID)
	})
	if err != nil {
		return classifyDBError(err, "quiz", quizID)
	}
	discardImage(store, quiz.Image)
	log.Printf("deleted quiz %d (%q)", quiz.ID, quiz.Title)
	return nil
}

/*** Categories ***/

type categoryInput struct {
	Name string `form:"name" validate:"required,max=100"`
}

func CreateCategory(db *gorm.DB, name string) (*Category, error) {
	in := categoryInput{Name: strings.TrimSpace(name)}
	verr := &ValidationError{}
	collectFieldErrors(validate.Struct(in), "", verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	cat := Category{Name: in.Name}
	if err := db.Create(&cat).Error; err != nil {
		return nil, classifyDBError(err, "category", 0)
	}
	return &cat, nil
}

// DeleteCategory removes the category and all of its quizzes.
func DeleteCategory(db *gorm.DB, store ImageStore, categoryID uint) error {
	var quizzes []Quiz
	err := db.Transaction(func(tx *gorm.DB) error {
		var cat Category
		if err := tx.First(&cat, categoryID).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", categoryID).Find(&quizzes).Error; err != nil {
			return err
		}
		for _, q := range quizzes {
			if err := deleteQuizTx(tx, q.ID); err != nil {
				return err
			}
		}
		return tx.Delete(&Category{}, categoryID).Error
	})
	if err != nil {
		return classifyDBError(err, "category", categoryID)
	}
	for _, q := range quizzes {
		discardImage(store, q.Image)
	}
	return nil
}

func discardImage(store ImageStore, key string) {
	if key == "" || store == nil {
		return
	}
	if err := store.Delete(key); err != nil {
		log.Printf("remove image %s: %v", key, err)
	}
}
