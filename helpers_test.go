package main

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory sqlite database with the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &Config{
		DBDriver:       "sqlite",
		DBDSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()),
		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,
		LogLevel:       "silent",
	}
	db, err := OpenDB(cfg)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestStore(t *testing.T) *FSImageStore {
	t.Helper()
	store, err := NewFSImageStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func newTaker(t *testing.T, db *gorm.DB) uint {
	t.Helper()
	tk := Taker{PublicID: uuid.NewString()}
	require.NoError(t, db.Create(&tk).Error)
	return tk.ID
}

func mustCreateQuiz(t *testing.T, db *gorm.DB, in QuizInput) *Quiz {
	t.Helper()
	quiz, err := CreateQuiz(db, nil, in)
	require.NoError(t, err)
	loaded, err := loadQuiz(db, quiz.ID)
	require.NoError(t, err)
	return loaded
}

func opt(text string, correct bool) OptionInput {
	return OptionInput{Text: text, IsCorrect: correct}
}

// capitalsInput is a two question quiz: a TEXT and a RADIO question.
func capitalsInput() QuizInput {
	return QuizInput{
		Title: "Capitals",
		Questions: []QuestionInput{
			{Text: "Capital of France?", Type: QuestionText, Options: []OptionInput{opt("Paris", true)}},
			{Text: "Capital of Australia?", Type: QuestionRadio, Options: []OptionInput{
				opt("Sydney", false), opt("Canberra", true), opt("Melbourne", false),
			}},
		},
	}
}

// optionID finds the option with the given text in q.
func optionID(t *testing.T, q Question, text string) uint {
	t.Helper()
	for _, o := range q.Options {
		if o.Text == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found in question %d", text, q.ID)
	return 0
}

func idString(id uint) string {
	return fmt.Sprintf("%d", id)
}
