package model

type QuestionType string

const (
	QuestionMCQ             QuestionType = "MCQ"
	QuestionTrueFalse       QuestionType = "TRUE_FALSE"
	QuestionShortAnswer     QuestionType = "SHORT_ANSWER"
	QuestionEssay           QuestionType = "ESSAY"
	QuestionFillInTheBlank  QuestionType = "FILL_IN_THE_BLANK"
	QuestionTypeUnspecified QuestionType = ""
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay, QuestionFillInTheBlank:
		return true
	}
	return false
}

// ChoiceBased reports whether questions of this type carry options.
func (t QuestionType) ChoiceBased() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	TeacherID string     `gorm:"size:64;index;not null" json:"teacherId"`
	TopicID   string     `gorm:"size:64;index" json:"topicId"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Subject   string     `gorm:"size:200" json:"subject"`
	Questions []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Question belongs to exactly one quiz. QuestionType may be empty on records
// written before the type tag existed.
// swagger:model Question
type Question struct {
	UUIDBase
	QuizID        string       `gorm:"size:36;index;not null" json:"quizId"`
	Position      int          `gorm:"default:0" json:"position"`
	QuestionType  QuestionType `gorm:"size:30" json:"questionType"`
	Text          string       `gorm:"type:text;not null" json:"text"`
	CorrectAnswer string       `gorm:"type:text" json:"correctAnswer,omitempty"`
	Explanation   string       `gorm:"type:text" json:"explanation,omitempty"`
	Options       []Option     `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOption returns the option flagged correct, or nil.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// swagger:model Option
type Option struct {
	UUIDBase
	QuestionID string `gorm:"size:36;index;not null" json:"questionId"`
	Position   int    `gorm:"default:0" json:"position"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
}

func (Option) TableName() string {
	return "options"
}
