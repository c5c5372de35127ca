package models

import (
	"time"

	"github.com/prolean/ProleanBack/pkg/i18n"
)

// Training is a purchasable program. Translatable text lives in Content.
type Training struct {
	ID           int64       `json:"id"`
	Slug         string      `json:"slug"`
	PriceMAD     float64     `json:"price_mad"`
	DurationDays int         `json:"duration_days"`
	MaxStudents  int         `json:"max_students"`
	IsActive     bool        `json:"is_active"`
	Content      i18n.Fields `json:"content"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

const (
	TrainingFieldTitle               = "title"
	TrainingFieldShortDescription    = "short_description"
	TrainingFieldDetailedDescription = "detailed_description"
	TrainingFieldObjectives          = "objectives"
	TrainingFeaturePrefix            = "feature"
	TrainingPrerequisitePrefix       = "prerequisite"
	TrainingMaxNumberedItems         = 5
)

// TrainingView is a Training rendered in one language.
type TrainingView struct {
	ID                  int64    `json:"id"`
	Slug                string   `json:"slug"`
	Language            string   `json:"language"`
	Title               string   `json:"title"`
	ShortDescription    string   `json:"short_description"`
	DetailedDescription string   `json:"detailed_description"`
	Objectives          string   `json:"objectives"`
	Features            []string `json:"features"`
	Prerequisites       []string `json:"prerequisites"`
	PriceMAD            float64  `json:"price_mad"`
	Currency            string   `json:"currency"`
	DurationDays        int      `json:"duration_days"`
	MaxStudents         int      `json:"max_students"`
}

func (t Training) Localized(lang string, currency string) TrainingView {
	lang = i18n.NormalizeLanguage(lang)
	return TrainingView{
		ID:                  t.ID,
		Slug:                t.Slug,
		Language:            lang,
		Title:               i18n.Localize(t.Content, TrainingFieldTitle, lang),
		ShortDescription:    i18n.Localize(t.Content, TrainingFieldShortDescription, lang),
		DetailedDescription: i18n.Localize(t.Content, TrainingFieldDetailedDescription, lang),
		Objectives:          i18n.Localize(t.Content, TrainingFieldObjectives, lang),
		Features:            i18n.Numbered(t.Content, TrainingFeaturePrefix, TrainingMaxNumberedItems, lang),
		Prerequisites:       i18n.Numbered(t.Content, TrainingPrerequisitePrefix, TrainingMaxNumberedItems, lang),
		PriceMAD:            t.PriceMAD,
		Currency:            currency,
		DurationDays:        t.DurationDays,
		MaxStudents:         t.MaxStudents,
	}
}
