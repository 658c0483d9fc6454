package service

import (
	"fmt"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/util"
	"math"
	"strings"
)

// ScoreResult counts only auto-graded questions.
type ScoreResult struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// IsAutoGraded reports whether q is scored automatically. Questions stored
// before the type tag existed count as auto-graded when they have options.
func IsAutoGraded(q *model.Question) bool {
	switch q.QuestionType {
	case model.QuestionMCQ, model.QuestionTrueFalse:
		return true
	case model.QuestionTypeUnspecified:
		return len(q.Options) > 0
	default:
		return false
	}
}

// Classify splits the quiz's questions, keeping their order.
func Classify(quiz *model.Quiz) (auto, manual []model.Question) {
	for i := range quiz.Questions {
		if IsAutoGraded(&quiz.Questions[i]) {
			auto = append(auto, quiz.Questions[i])
		} else {
			manual = append(manual, quiz.Questions[i])
		}
	}
	return auto, manual
}

// ValidateAnswers rejects answers keyed by questions that are not in quiz.
func ValidateAnswers(quiz *model.Quiz, answers map[string]string) error {
	known := make(map[string]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = struct{}{}
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: question %s is not part of quiz %s", util.ErrMalformedSubmission, id, quiz.ID)
		}
	}
	return nil
}

// Score grades the auto-graded section. A missing answer is incorrect.
func Score(quiz *model.Quiz, answers map[string]string) (ScoreResult, error) {
	if err := ValidateAnswers(quiz, answers); err != nil {
		return ScoreResult{}, err
	}

	auto, _ := Classify(quiz)
	res := ScoreResult{Total: len(auto)}
	for i := range auto {
		answer, ok := answers[auto[i].ID]
		if ok && answerCorrect(&auto[i], answer) {
			res.Correct++
		}
	}
	res.Percentage = percentage(res.Correct, res.Total)
	return res, nil
}

func percentage(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func answerCorrect(q *model.Question, answer string) bool {
	correct := q.CorrectOption()
	if q.QuestionType == model.QuestionTrueFalse {
		if correct != nil && answer == correct.ID {
			return true
		}
		expected := q.CorrectAnswer
		if correct != nil {
			expected = correct.Text
		}
		return expected != "" && sameText(answer, expected)
	}
	// MCQ and untyped legacy questions compare option identity.
	return correct != nil && answer == correct.ID
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
