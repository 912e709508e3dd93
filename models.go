package main

import (
	"time"
)

// --- Anonymous taker ---

type Taker struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"uniqueIndex;size:36;not null"` // UUID stored in the qz_sid cookie
	CreatedAt time.Time
}

// --- Authoring ---

type Category struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"size:100;not null"`
	Quizzes []Quiz `gorm:"constraint:OnDelete:CASCADE"`
}

type Quiz struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string `gorm:"size:200;not null"`
	CategoryID *uint  `gorm:"index"`
	Category   *Category
	Image      string     `gorm:"size:255"` // image store key, "" when none
	Questions  []Question `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type QuestionType string

const (
	QuestionText     QuestionType = "TEXT"
	QuestionRadio    QuestionType = "RADIO"
	QuestionCheckbox QuestionType = "CHECKBOX"
)

// QuestionTypes lists the choices in the order the forms show them.
var QuestionTypes = []QuestionType{QuestionText, QuestionRadio, QuestionCheckbox}

func (t QuestionType) Label() string {
	switch t {
	case QuestionText:
		return "Text"
	case QuestionRadio:
		return "Radio Button"
	case QuestionCheckbox:
		return "Checkbox"
	}
	return string(t)
}

type Question struct {
	ID      uint         `gorm:"primaryKey"`
	QuizID  uint         `gorm:"index;not null"`
	Text    string       `gorm:"size:200;not null"`
	Type    QuestionType `gorm:"size:8;not null;default:TEXT"`
	Options []Option     `gorm:"constraint:OnDelete:CASCADE"`
}

type Option struct {
	ID         uint   `gorm:"primaryKey"`
	QuestionID uint   `gorm:"index;not null"`
	Text       string `gorm:"size:200;not null"`
	IsCorrect  bool   `gorm:"not null;default:false"`
}

// --- Taking ---

// Submission is one taker's answer set for one quiz. Resubmitting replaces it.
type Submission struct {
	ID          string    `gorm:"primaryKey;size:36"`
	QuizID      uint      `gorm:"not null;uniqueIndex:idx_submission_quiz_taker"`
	Quiz        *Quiz     `gorm:"constraint:OnDelete:CASCADE"`
	TakerID     uint      `gorm:"not null;uniqueIndex:idx_submission_quiz_taker"`
	Taker       *Taker    `gorm:"constraint:OnDelete:CASCADE"`
	SubmittedAt time.Time `gorm:"not null;index"`
	Answers     []Answer  `gorm:"constraint:OnDelete:CASCADE"`
}

type Answer struct {
	ID               uint      `gorm:"primaryKey"`
	SubmissionID     string    `gorm:"index;size:36;not null"`
	QuestionID       uint      `gorm:"index;not null"`
	Question         *Question `gorm:"constraint:OnDelete:CASCADE"`
	SelectedOptionID *uint     `gorm:"index"`
	SelectedOption   *Option   `gorm:"foreignKey:SelectedOptionID;constraint:OnDelete:CASCADE"`
	TextAnswer       string    `gorm:"size:200;not null;default:''"`
}
