package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ResultOption struct {
	ID        uint
	Text      string
	IsCorrect bool
	Selected  bool
}

type QuestionResult struct {
	QuestionID uint
	Text       string
	Type       QuestionType
	Correct    []string // correct option text(s)
	Selected   []string // submitted text or selected option text(s)
	Options    []ResultOption
	IsCorrect  bool
}

type QuizResult struct {
	QuizID         uint
	Title          string
	SubmissionID   string
	SubmittedAt    *time.Time
	Score          int
	TotalQuestions int
	Questions      []QuestionResult
}

// grader is implemented once per question kind. graderFor is the only place
// that maps a stored QuestionType onto a kind.
type grader interface {
	// answers turns the raw form values for one question into Answer rows.
	answers(q Question, values []string) ([]Answer, error)
	grade(q Question, answers []Answer) QuestionResult
}

func graderFor(t QuestionType) (grader, error) {
	switch t {
	case QuestionText:
		return textGrader{}, nil
	case QuestionRadio:
		return singleChoiceGrader{}, nil
	case QuestionCheckbox:
		return multiChoiceGrader{}, nil
	}
	return nil, fmt.Errorf("unknown question type %q", t)
}

// --- TEXT ---

type textGrader struct{}

func (textGrader) answers(q Question, values []string) ([]Answer, error) {
	text := ""
	if len(values) > 0 {
		text = values[0]
	}
	if len([]rune(text)) > 200 {
		return nil, &ValidationError{Fields: map[string]string{
			answerField(q.ID): "Ensure this value has at most 200 characters.",
		}}
	}
	return []Answer{{QuestionID: q.ID, TextAnswer: text}}, nil
}

func (textGrader) grade(q Question, answers []Answer) QuestionResult {
	res := newQuestionResult(q)
	correct, ok := canonicalTextOption(q.Options)
	if ok {
		res.Correct = append(res.Correct, correct.Text)
	}
	if len(answers) == 0 {
		return res
	}
	submitted := answers[0].TextAnswer
	res.Selected = append(res.Selected, submitted)
	res.IsCorrect = ok && textMatches(submitted, correct.Text)
	return res
}

// canonicalTextOption picks the lowest-id correct option.
func canonicalTextOption(opts []Option) (Option, bool) {
	var best Option
	found := false
	for _, o := range opts {
		if !o.IsCorrect {
			continue
		}
		if !found || o.ID < best.ID {
			best = o
			found = true
		}
	}
	return best, found
}

func textMatches(submitted, correct string) bool {
	return strings.ToLower(strings.TrimSpace(submitted)) == strings.ToLower(strings.TrimSpace(correct))
}

// --- RADIO ---

type singleChoiceGrader struct{}

func (singleChoiceGrader) answers(q Question, values []string) ([]Answer, error) {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		id, err := parseOptionID(q, v)
		if err != nil {
			return nil, err
		}
		return []Answer{{QuestionID: q.ID, SelectedOptionID: &id}}, nil
	}
	// no choice submitted: no row
	return nil, nil
}

func (singleChoiceGrader) grade(q Question, answers []Answer) QuestionResult {
	return gradeChoice(q, answers)
}

// --- CHECKBOX ---

type multiChoiceGrader struct{}

func (multiChoiceGrader) answers(q Question, values []string) ([]Answer, error) {
	out := []Answer{}
	seen := map[uint]bool{}
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		id, err := parseOptionID(q, v)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		optID := id
		out = append(out, Answer{QuestionID: q.ID, SelectedOptionID: &optID})
	}
	return out, nil
}

func (multiChoiceGrader) grade(q Question, answers []Answer) QuestionResult {
	return gradeChoice(q, answers)
}

// gradeChoice compares selected and correct option ids as sets; no partial credit.
func gradeChoice(q Question, answers []Answer) QuestionResult {
	res := newQuestionResult(q)

	selected := make([]uint, 0, len(answers))
	selSet := map[uint]bool{}
	for _, a := range answers {
		if a.SelectedOptionID == nil {
			continue
		}
		selected = append(selected, *a.SelectedOptionID)
		selSet[*a.SelectedOptionID] = true
	}

	var correct []uint
	for _, o := range q.Options {
		if o.IsCorrect {
			correct = append(correct, o.ID)
			res.Correct = append(res.Correct, o.Text)
		}
		if selSet[o.ID] {
			res.Selected = append(res.Selected, o.Text)
		}
		res.Options = append(res.Options, ResultOption{
			ID:        o.ID,
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
			Selected:  selSet[o.ID],
		})
	}
	res.IsCorrect = sameOptionSet(selected, correct)
	return res
}

func sameOptionSet(selected, correct []uint) bool {
	selSet := make(map[uint]struct{}, len(selected))
	for _, id := range selected {
		selSet[id] = struct{}{}
	}
	corSet := make(map[uint]struct{}, len(correct))
	for _, id := range correct {
		corSet[id] = struct{}{}
	}
	if len(selSet) != len(corSet) {
		return false
	}
	for id := range corSet {
		if _, ok := selSet[id]; !ok {
			return false
		}
	}
	return true
}

func newQuestionResult(q Question) QuestionResult {
	return QuestionResult{
		QuestionID: q.ID,
		Text:       q.Text,
		Type:       q.Type,
		Correct:    []string{},
		Selected:   []string{},
	}
}

func parseOptionID(q Question, raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &ValidationError{Fields: map[string]string{
			answerField(q.ID): "Select a valid choice.",
		}}
	}
	id := uint(n)
	for _, o := range q.Options {
		if o.ID == id {
			return id, nil
		}
	}
	return 0, notFound("option", id)
}

func answerField(questionID uint) string {
	return "question_" + strconv.FormatUint(uint64(questionID), 10)
}

// scoreQuiz grades every question of quiz against sub. A nil sub means the
// taker has not answered: questions are listed but nothing scores.
func scoreQuiz(quiz *Quiz, sub *Submission) (*QuizResult, error) {
	byQuestion := map[uint][]Answer{}
	res := &QuizResult{
		QuizID:         quiz.ID,
		Title:          quiz.Title,
		TotalQuestions: len(quiz.Questions),
		Questions:      make([]QuestionResult, 0, len(quiz.Questions)),
	}
	if sub != nil {
		res.SubmissionID = sub.ID
		at := sub.SubmittedAt
		res.SubmittedAt = &at
		for _, a := range sub.Answers {
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		}
	}

	for _, q := range quiz.Questions {
		g, err := graderFor(q.Type)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		qr := g.grade(q, byQuestion[q.ID])
		if sub == nil {
			qr.IsCorrect = false
		}
		if qr.IsCorrect {
			res.Score++
		}
		res.Questions = append(res.Questions, qr)
	}
	return res, nil
}
