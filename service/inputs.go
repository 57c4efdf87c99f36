package service

import (
	"time"

	"github.com/kevinaaaquil/scripture-catalog/models"
)

// VerseInput is the accepted shape of a verse. Counters and timestamps are
// never taken from callers.
type VerseInput struct {
	VerseNumber     string            `json:"verseNumber" validate:"required,max=20"`
	OrderNumber     int               `json:"orderNumber" validate:"gte=0"`
	SanskritText    string            `json:"sanskritText,omitempty"`
	Transliteration string            `json:"transliteration,omitempty"`
	Translation     string            `json:"translation" validate:"required"`
	Purport         string            `json:"purport,omitempty"`
	Synonyms        []SynonymInput    `json:"synonyms,omitempty" validate:"dive"`
	WordForWord     string            `json:"wordForWord,omitempty"`
	Audio           *models.AudioData `json:"audio,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
}

type SynonymInput struct {
	Word    string `json:"word" validate:"required"`
	Meaning string `json:"meaning" validate:"required"`
	Link    string `json:"link,omitempty" validate:"omitempty,url"`
}

type ChapterInput struct {
	ChapterNumber int          `json:"chapterNumber" validate:"required,gt=0"`
	Title         string       `json:"title" validate:"required,max=300"`
	Subtitle      string       `json:"subtitle,omitempty"`
	Description   string       `json:"description,omitempty"`
	Introduction  string       `json:"introduction,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Verses        []VerseInput `json:"verses,omitempty" validate:"dive"`
}

// BookInput creates a book. Category defaults to "other", status to "draft".
type BookInput struct {
	Slug            string               `json:"slug" validate:"required,slug,max=200"`
	Title           string               `json:"title" validate:"required,max=300"`
	Subtitle        string               `json:"subtitle,omitempty"`
	Description     string               `json:"description" validate:"required"`
	Author          string               `json:"author" validate:"required,max=200"`
	Category        models.BookCategory  `json:"category,omitempty" validate:"omitempty,oneof=bhagavad-gita srimad-bhagavatam caitanya-caritamrita nectar-of-instruction krishna-book nectar-of-devotion isopanishad science-of-self-realization other"`
	Status          models.BookStatus    `json:"status,omitempty" validate:"omitempty,oneof=draft published archived under-review"`
	CoverImageURL   string               `json:"coverImageUrl,omitempty" validate:"omitempty,url"`
	Tags            []string             `json:"tags,omitempty"`
	Preface         string               `json:"preface,omitempty"`
	Introduction    string               `json:"introduction,omitempty"`
	Dedication      string               `json:"dedication,omitempty"`
	SettingTheScene string               `json:"settingTheScene,omitempty"`
	Chapters        []ChapterInput       `json:"chapters,omitempty" validate:"dive"`
	Metadata        *models.BookMetadata `json:"metadata,omitempty"`
	FeaturedUntil   *time.Time           `json:"featuredUntil,omitempty"`
	AllowComments   *bool                `json:"allowComments,omitempty"`
	AllowDownload   *bool                `json:"allowDownload,omitempty"`
	MetaTitle       string               `json:"metaTitle,omitempty"`
	MetaDescription string               `json:"metaDescription,omitempty"`
	MetaKeywords    []string             `json:"metaKeywords,omitempty"`
}

// BookPatch is a partial update; nil fields are left unchanged. Chapters, when
// present, replaces the whole chapter list.
type BookPatch struct {
	Slug            *string              `json:"slug,omitempty" validate:"omitempty,slug,max=200"`
	Title           *string              `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Subtitle        *string              `json:"subtitle,omitempty"`
	Description     *string              `json:"description,omitempty"`
	Author          *string              `json:"author,omitempty" validate:"omitempty,min=1,max=200"`
	Category        *models.BookCategory `json:"category,omitempty" validate:"omitempty,oneof=bhagavad-gita srimad-bhagavatam caitanya-caritamrita nectar-of-instruction krishna-book nectar-of-devotion isopanishad science-of-self-realization other"`
	Status          *models.BookStatus   `json:"status,omitempty" validate:"omitempty,oneof=draft published archived under-review"`
	CoverImageURL   *string              `json:"coverImageUrl,omitempty" validate:"omitempty,url"`
	Tags            *[]string            `json:"tags,omitempty"`
	Preface         *string              `json:"preface,omitempty"`
	Introduction    *string              `json:"introduction,omitempty"`
	Dedication      *string              `json:"dedication,omitempty"`
	SettingTheScene *string              `json:"settingTheScene,omitempty"`
	Chapters        *[]ChapterInput      `json:"chapters,omitempty" validate:"omitempty,dive"`
	FeaturedUntil   *time.Time           `json:"featuredUntil,omitempty"`
	AllowComments   *bool                `json:"allowComments,omitempty"`
	AllowDownload   *bool                `json:"allowDownload,omitempty"`
	MetaTitle       *string              `json:"metaTitle,omitempty"`
	MetaDescription *string              `json:"metaDescription,omitempty"`
	MetaKeywords    *[]string            `json:"metaKeywords,omitempty"`
}

// BookFilter lists books. Zero Page and Limit take their defaults; IsActive
// defaults to true.
type BookFilter struct {
	Page      int                 `json:"page" validate:"min=1"`
	Limit     int                 `json:"limit" validate:"min=1,max=100"`
	Search    string              `json:"search"`
	Category  models.BookCategory `json:"category" validate:"omitempty,oneof=bhagavad-gita srimad-bhagavatam caitanya-caritamrita nectar-of-instruction krishna-book nectar-of-devotion isopanishad science-of-self-realization other"`
	Status    models.BookStatus   `json:"status" validate:"omitempty,oneof=draft published archived under-review"`
	Author    string              `json:"author"`
	Tags      []string            `json:"tags"`
	SortBy    string              `json:"sortBy" validate:"omitempty,oneof=title createdAt updatedAt viewCount author"`
	SortOrder string              `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	IsActive  *bool               `json:"isActive"`
	Featured  *bool               `json:"featured"`
}

type ChapterFilter struct {
	Page   int      `json:"page" validate:"min=1"`
	Limit  int      `json:"limit" validate:"min=1,max=100"`
	Search string   `json:"search"`
	Tags   []string `json:"tags"`
}

type VerseFilter struct {
	Page        int      `json:"page" validate:"min=1"`
	Limit       int      `json:"limit" validate:"min=1,max=100"`
	Search      string   `json:"search"`
	HasAudio    *bool    `json:"hasAudio"`
	HasPurport  *bool    `json:"hasPurport"`
	HasSanskrit *bool    `json:"hasSanskrit"`
	Tags        []string `json:"tags"`
}

type searchRequest struct {
	Term  string `json:"q" validate:"required"`
	Page  int    `json:"page" validate:"min=1"`
	Limit int    `json:"limit" validate:"min=1,max=100"`
}

const (
	defaultBookLimit    = 10
	defaultChapterLimit = 20
	defaultVerseLimit   = 50
	defaultSearchLimit  = 20
)

func pageDefaults(page, limit *int, defLimit int) {
	if *page == 0 {
		*page = 1
	}
	if *limit == 0 {
		*limit = defLimit
	}
}

func (in VerseInput) toVerse(now time.Time) models.Verse {
	v := models.Verse{
		VerseNumber:     in.VerseNumber,
		OrderNumber:     in.OrderNumber,
		SanskritText:    in.SanskritText,
		Transliteration: in.Transliteration,
		Translation:     in.Translation,
		Purport:         in.Purport,
		WordForWord:     in.WordForWord,
		Audio:           in.Audio,
		Tags:            nonNil(in.Tags),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, s := range in.Synonyms {
		v.Synonyms = append(v.Synonyms, models.Synonym{Word: s.Word, Meaning: s.Meaning, Link: s.Link})
	}
	return v
}

func (in ChapterInput) toChapter(now time.Time) models.Chapter {
	ch := models.Chapter{
		ChapterNumber: in.ChapterNumber,
		Title:         in.Title,
		Subtitle:      in.Subtitle,
		Description:   in.Description,
		Introduction:  in.Introduction,
		Tags:          nonNil(in.Tags),
		Verses:        make([]models.Verse, 0, len(in.Verses)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, v := range in.Verses {
		ch.Verses = append(ch.Verses, v.toVerse(now))
	}
	return ch
}

func toChapters(in []ChapterInput, now time.Time) []models.Chapter {
	out := make([]models.Chapter, 0, len(in))
	for _, c := range in {
		out = append(out, c.toChapter(now))
	}
	return out
}

func (in BookInput) toBook(now time.Time) *models.Book {
	b := &models.Book{
		Slug:            in.Slug,
		Title:           in.Title,
		Subtitle:        in.Subtitle,
		Description:     in.Description,
		Author:          in.Author,
		Category:        in.Category,
		Status:          in.Status,
		CoverImageURL:   in.CoverImageURL,
		Tags:            nonNil(in.Tags),
		Preface:         in.Preface,
		Introduction:    in.Introduction,
		Dedication:      in.Dedication,
		SettingTheScene: in.SettingTheScene,
		Chapters:        toChapters(in.Chapters, now),
		Metadata:        in.Metadata,
		FeaturedUntil:   in.FeaturedUntil,
		IsActive:        true,
		AllowComments:   true,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		MetaKeywords:    in.MetaKeywords,
		Version:         1,
	}
	if b.Category == "" {
		b.Category = models.CategoryOther
	}
	if b.Status == "" {
		b.Status = models.StatusDraft
	}
	if in.AllowComments != nil {
		b.AllowComments = *in.AllowComments
	}
	if in.AllowDownload != nil {
		b.AllowDownload = *in.AllowDownload
	}
	return b
}

// apply copies every set field of p onto b. Chapters are handled by the caller.
func (p BookPatch) apply(b *models.Book) {
	setString(&b.Slug, p.Slug)
	setString(&b.Title, p.Title)
	setString(&b.Subtitle, p.Subtitle)
	setString(&b.Description, p.Description)
	setString(&b.Author, p.Author)
	setString(&b.CoverImageURL, p.CoverImageURL)
	setString(&b.Preface, p.Preface)
	setString(&b.Introduction, p.Introduction)
	setString(&b.Dedication, p.Dedication)
	setString(&b.SettingTheScene, p.SettingTheScene)
	setString(&b.MetaTitle, p.MetaTitle)
	setString(&b.MetaDescription, p.MetaDescription)
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Tags != nil {
		b.Tags = nonNil(*p.Tags)
	}
	if p.MetaKeywords != nil {
		b.MetaKeywords = *p.MetaKeywords
	}
	if p.FeaturedUntil != nil {
		b.FeaturedUntil = p.FeaturedUntil
	}
	if p.AllowComments != nil {
		b.AllowComments = *p.AllowComments
	}
	if p.AllowDownload != nil {
		b.AllowDownload = *p.AllowDownload
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
