package model

type ResourceType string

const (
	PDF       ResourceType = "pdf"
	Video     ResourceType = "video"
	Article   ResourceType = "article"
	Worksheet ResourceType = "worksheet"
)

// Resource is an uploaded teaching resource. Resources are shared between
// bundles and outlive them.
// swagger:model Resource
type Resource struct {
	UUIDBase
	OwnerID     string       `gorm:"size:64;index;not null" json:"ownerId"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Type        ResourceType `gorm:"size:20;not null" json:"type"`
	ObjectKey   string       `gorm:"size:255" json:"objectKey"`
	URL         string       `gorm:"size:500" json:"url"`
	Size        int64        `gorm:"column:size;default:0" json:"size"`
}

func (Resource) TableName() string {
	return "resources"
}
