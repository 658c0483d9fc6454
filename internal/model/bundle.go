package model

import "gorm.io/datatypes"

type BundleStatus string

const (
	BundleDraft     BundleStatus = "draft"
	BundlePublished BundleStatus = "published"
	BundleArchived  BundleStatus = "archived"
)

func (s BundleStatus) Valid() bool {
	switch s {
	case BundleDraft, BundlePublished, BundleArchived:
		return true
	}
	return false
}

// GenerationContext is the curriculum snapshot used to prompt the content
// provider. It is stored on the bundle as-is.
type GenerationContext struct {
	School          string   `json:"school" validate:"max=200"`
	Level           string   `json:"level" validate:"max=100"`
	Class           string   `json:"class" validate:"max=100"`
	Subject         string   `json:"subject" validate:"required,max=200"`
	Strand          string   `json:"strand" validate:"max=200"`
	SubStrand       string   `json:"subStrand" validate:"max=200"`
	Topic           string   `json:"topic" validate:"required,max=300"`
	Term            string   `json:"term" validate:"max=50"`
	Week            string   `json:"week" validate:"max=50"`
	ContentStandard string   `json:"contentStandard" validate:"max=100"`
	Indicators      []string `json:"indicators" validate:"dive,max=100"`
	Reference       string   `json:"reference" validate:"max=500"`
	QuestionCount   int      `json:"questionCount" validate:"gte=0,lte=50"`
	ManualCount     int      `json:"manualCount" validate:"gte=0,lte=20"`
}

// swagger:model Bundle
type Bundle struct {
	UUIDBase
	TeacherID      string                                `gorm:"size:64;index;not null" json:"teacherId"`
	OrgID          string                                `gorm:"size:64;index" json:"orgId"`
	TopicID        string                                `gorm:"size:64;index" json:"topicId"`
	Title          string                                `gorm:"size:255;not null" json:"title"`
	Description    string                                `gorm:"type:text" json:"description"`
	Tags           datatypes.JSONSlice[string]           `json:"tags"`
	Status         BundleStatus                          `gorm:"size:20;index;not null;default:'draft'" json:"status"`
	LessonNoteID   string                                `gorm:"size:36;not null" json:"lessonNoteId"`
	LearnerNoteID  string                                `gorm:"size:36;index;not null" json:"learnerNoteId"`
	QuizID         string                                `gorm:"size:36;index;not null" json:"quizId"`
	Context        datatypes.JSONType[GenerationContext] `json:"context"`
	Provider       string                                `gorm:"size:50" json:"provider"`
	ModelName      string                                `gorm:"size:100" json:"model"`
	SourceBundleID *string                               `gorm:"size:36" json:"sourceBundleId,omitempty"`
	ViewCount      int                                   `gorm:"default:0" json:"viewCount"`
	AttemptCount   int                                   `gorm:"default:0" json:"attemptCount"`
	DuplicateCount int                                   `gorm:"default:0" json:"duplicateCount"`

	LessonNote  *LessonNote  `gorm:"foreignKey:LessonNoteID" json:"lessonNote,omitempty"`
	LearnerNote *LearnerNote `gorm:"foreignKey:LearnerNoteID" json:"learnerNote,omitempty"`
	Quiz        *Quiz        `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
	Resources   []Resource   `gorm:"many2many:bundle_resources;joinForeignKey:BundleID;joinReferences:ResourceID" json:"resources,omitempty"`
}

func (Bundle) TableName() string {
	return "bundles"
}

// BundleResource links a bundle to a shared resource. Deleting a bundle removes
// the link, never the resource.
type BundleResource struct {
	BundleID   string `gorm:"primaryKey;size:36"`
	ResourceID string `gorm:"primaryKey;size:36"`
}

func (BundleResource) TableName() string {
	return "bundle_resources"
}
