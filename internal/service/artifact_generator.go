package service

import (
	"context"
	"encoding/json"
	"fmt"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/util"
	"lesson_bundle_backend/pkg/monitoring"
	"lesson_bundle_backend/pkg/tracing"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ArtifactKind string

const (
	ArtifactTeacherNote ArtifactKind = "teacherNote"
	ArtifactLearnerNote ArtifactKind = "learnerNote"
	ArtifactQuiz        ArtifactKind = "quiz"
)

// ParsedArtifact is one generated artifact ready to persist. Text is set for
// notes, Quiz for quizzes.
type ParsedArtifact struct {
	Kind ArtifactKind
	Text string
	Quiz *model.Quiz
}

const quizSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "title": {"type": "string"},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["questionType", "text"],
        "properties": {
          "questionType": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1},
          "answer": {"type": ["string", "boolean", "null"]},
          "explanation": {"type": ["string", "null"]},
          "options": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["text"],
              "properties": {
                "text": {"type": "string", "minLength": 1},
                "isCorrect": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

type quizPayload struct {
	Title     string            `json:"title"`
	Questions []questionPayload `json:"questions"`
}

type questionPayload struct {
	QuestionType string          `json:"questionType"`
	Text         string          `json:"text"`
	Answer       json.RawMessage `json:"answer"`
	Explanation  string          `json:"explanation"`
	Options      []optionPayload `json:"options"`
}

type optionPayload struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// ArtifactGenerator prompts the content provider and parses what comes back.
// It never touches the database.
type ArtifactGenerator struct {
	provider ContentProvider
	schema   *gojsonschema.Schema
}

func NewArtifactGenerator(provider ContentProvider) (*ArtifactGenerator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(quizSchema))
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}
	return &ArtifactGenerator{provider: provider, schema: schema}, nil
}

func (g *ArtifactGenerator) Generate(ctx context.Context, kind ArtifactKind, gc model.GenerationContext) (*ParsedArtifact, error) {
	ctx, span := tracing.Tracer.Start(ctx, "artifact.generate")
	span.SetAttributes(attribute.String("artifact.kind", string(kind)))
	defer span.End()

	start := time.Now()
	defer func() {
		monitoring.ArtifactDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	prompt, err := BuildPrompt(kind, gc)
	if err != nil {
		return nil, err
	}

	raw, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return nil, err
	}

	artifact, err := g.parse(kind, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed output")
		return nil, err
	}
	return artifact, nil
}

func (g *ArtifactGenerator) parse(kind ArtifactKind, raw string) (*ParsedArtifact, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty %s", util.ErrMalformedProviderOutput, kind)
	}

	switch kind {
	case ArtifactTeacherNote, ArtifactLearnerNote:
		return &ParsedArtifact{Kind: kind, Text: text}, nil
	case ArtifactQuiz:
		quiz, err := g.ParseQuiz(text)
		if err != nil {
			return nil, err
		}
		return &ParsedArtifact{Kind: kind, Quiz: quiz}, nil
	default:
		return nil, fmt.Errorf("%w: unknown artifact kind %q", util.ErrInvalidInput, kind)
	}
}

// ParseQuiz validates provider output against the quiz schema and the
// per-type rules. It returns either a complete quiz or an error, never a
// partial quiz. IDs are left empty.
func (g *ArtifactGenerator) ParseQuiz(raw string) (*model.Quiz, error) {
	body := stripFences(raw)

	result, err := g.schema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: quiz is not JSON: %w", util.ErrMalformedProviderOutput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", util.ErrMalformedProviderOutput, strings.Join(msgs, "; "))
	}

	var payload quizPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrMalformedProviderOutput, err)
	}

	quiz := &model.Quiz{Title: strings.TrimSpace(payload.Title)}
	for i, qp := range payload.Questions {
		q, err := buildQuestion(i, qp)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %w", util.ErrMalformedProviderOutput, i+1, err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz, nil
}

var questionTypeAliases = map[string]model.QuestionType{
	"MULTIPLE_CHOICE":    model.QuestionMCQ,
	"TRUE_OR_FALSE":      model.QuestionTrueFalse,
	"TRUEFALSE":          model.QuestionTrueFalse,
	"SHORT":              model.QuestionShortAnswer,
	"FILL_IN_BLANK":      model.QuestionFillInTheBlank,
	"FILL_IN_THE_BLANKS": model.QuestionFillInTheBlank,
}

func normalizeQuestionType(s string) model.QuestionType {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_", "/", "_OR_").Replace(key)
	if t, ok := questionTypeAliases[key]; ok {
		return t
	}
	return model.QuestionType(key)
}

func buildQuestion(pos int, qp questionPayload) (model.Question, error) {
	qt := normalizeQuestionType(qp.QuestionType)
	if !qt.Valid() {
		return model.Question{}, fmt.Errorf("unknown question type %q", qp.QuestionType)
	}

	q := model.Question{
		Position:     pos,
		QuestionType: qt,
		Text:         strings.TrimSpace(qp.Text),
		Explanation:  strings.TrimSpace(qp.Explanation),
	}
	answer := answerText(qp.Answer)

	if !qt.ChoiceBased() {
		if answer == "" {
			return model.Question{}, fmt.Errorf("%s needs a reference answer", qt)
		}
		q.CorrectAnswer = answer
		return q, nil
	}

	opts := qp.Options
	if qt == model.QuestionTrueFalse && len(opts) == 0 {
		switch strings.ToLower(answer) {
		case "true":
			opts = []optionPayload{{Text: "True", IsCorrect: true}, {Text: "False"}}
		case "false":
			opts = []optionPayload{{Text: "True"}, {Text: "False", IsCorrect: true}}
		default:
			return model.Question{}, fmt.Errorf("TRUE_FALSE without options needs a true/false answer")
		}
	}
	if len(opts) < 2 {
		return model.Question{}, fmt.Errorf("%s needs at least two options", qt)
	}

	correct := 0
	for j, op := range opts {
		if op.IsCorrect {
			correct++
		}
		q.Options = append(q.Options, model.Option{
			Position:  j,
			Text:      strings.TrimSpace(op.Text),
			IsCorrect: op.IsCorrect,
		})
	}
	if correct != 1 {
		return model.Question{}, fmt.Errorf("%s needs exactly one correct option, got %d", qt, correct)
	}
	q.CorrectAnswer = q.CorrectOption().Text
	return q, nil
}

func answerText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}

// stripFences removes a surrounding markdown code fence and any chatter
// around the JSON object.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func kindMarker(kind ArtifactKind) string {
	return "[artifact:" + string(kind) + "]"
}

// BuildPrompt renders the provider prompt for one artifact.
func BuildPrompt(kind ArtifactKind, gc model.GenerationContext) (string, error) {
	var b strings.Builder
	b.WriteString(kindMarker(kind))
	b.WriteString("\n")

	switch kind {
	case ArtifactTeacherNote:
		b.WriteString("Write a lesson note for the teacher: objectives, starter, main activities, assessment and a closing reflection.\n")
	case ArtifactLearnerNote:
		b.WriteString("Write a learner note for students at this level: plain language, worked examples and a short summary.\n")
	case ArtifactQuiz:
		count := gc.QuestionCount
		if count <= 0 {
			count = 10
		}
		fmt.Fprintf(&b, "Write a quiz with %d auto-graded questions (MCQ or TRUE_FALSE)", count)
		if gc.ManualCount > 0 {
			fmt.Fprintf(&b, " and %d teacher-graded questions (SHORT_ANSWER, ESSAY or FILL_IN_THE_BLANK)", gc.ManualCount)
		}
		b.WriteString(".\nReturn only JSON shaped as ")
		b.WriteString(`{"title": string, "questions": [{"questionType": "MCQ"|"TRUE_FALSE"|"SHORT_ANSWER"|"ESSAY"|"FILL_IN_THE_BLANK", "text": string, "options": [{"text": string, "isCorrect": bool}], "answer": string, "explanation": string}]}`)
		b.WriteString(".\nChoice questions have exactly one correct option. Other questions have no options and a reference answer.\n")
	default:
		return "", fmt.Errorf("%w: unknown artifact kind %q", util.ErrInvalidInput, kind)
	}

	b.WriteString("\nCurriculum context:\n")
	field := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, strings.TrimSpace(value))
		}
	}
	field("School", gc.School)
	field("Level", gc.Level)
	field("Class", gc.Class)
	field("Subject", gc.Subject)
	field("Strand", gc.Strand)
	field("Sub-strand", gc.SubStrand)
	field("Topic", gc.Topic)
	field("Term", gc.Term)
	field("Week", gc.Week)
	field("Content standard", gc.ContentStandard)
	if len(gc.Indicators) > 0 {
		field("Indicators", strings.Join(gc.Indicators, "; "))
	}
	field("Reference", gc.Reference)

	return b.String(), nil
}
