package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookCategory string

const (
	CategoryBhagavadGita             BookCategory = "bhagavad-gita"
	CategorySrimadBhagavatam         BookCategory = "srimad-bhagavatam"
	CategoryCaitanyaCaritamrita      BookCategory = "caitanya-caritamrita"
	CategoryNectarOfInstruction      BookCategory = "nectar-of-instruction"
	CategoryKrishnaBook              BookCategory = "krishna-book"
	CategoryNectarOfDevotion         BookCategory = "nectar-of-devotion"
	CategoryIsopanishad              BookCategory = "isopanishad"
	CategoryScienceOfSelfRealization BookCategory = "science-of-self-realization"
	CategoryOther                    BookCategory = "other"
)

var ValidCategories = []BookCategory{
	CategoryBhagavadGita,
	CategorySrimadBhagavatam,
	CategoryCaitanyaCaritamrita,
	CategoryNectarOfInstruction,
	CategoryKrishnaBook,
	CategoryNectarOfDevotion,
	CategoryIsopanishad,
	CategoryScienceOfSelfRealization,
	CategoryOther,
}

type BookStatus string

const (
	StatusDraft       BookStatus = "draft"
	StatusPublished   BookStatus = "published"
	StatusArchived    BookStatus = "archived"
	StatusUnderReview BookStatus = "under-review"
)

// Synonym is one word-for-word gloss of a verse.
type Synonym struct {
	Word    string `bson:"word" json:"word"`
	Meaning string `bson:"meaning" json:"meaning"`
	Link    string `bson:"link,omitempty" json:"link,omitempty"`
}

type AudioData struct {
	AudioURL string `bson:"audioUrl,omitempty" json:"audioUrl,omitempty"`
	Speaker  string `bson:"speaker,omitempty" json:"speaker,omitempty"`
	Duration int    `bson:"duration,omitempty" json:"duration,omitempty"` // seconds
	Quality  string `bson:"quality,omitempty" json:"quality,omitempty"`   // e.g. "128kbps"
}

// Verse is the smallest addressable unit. VerseNumber is a label, not a number:
// "16-18" covers a combined range.
type Verse struct {
	VerseNumber     string     `bson:"verseNumber" json:"verseNumber"`
	OrderNumber     int        `bson:"orderNumber" json:"orderNumber"`
	SanskritText    string     `bson:"sanskritText,omitempty" json:"sanskritText,omitempty"`
	Transliteration string     `bson:"transliteration,omitempty" json:"transliteration,omitempty"`
	Translation     string     `bson:"translation" json:"translation"`
	Purport         string     `bson:"purport,omitempty" json:"purport,omitempty"`
	Synonyms        []Synonym  `bson:"synonyms,omitempty" json:"synonyms,omitempty"`
	WordForWord     string     `bson:"wordForWord,omitempty" json:"wordForWord,omitempty"`
	Audio           *AudioData `bson:"audio,omitempty" json:"audio,omitempty"`
	Tags            []string   `bson:"tags" json:"tags"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// HasAudio reports whether the verse carries a playable recording.
func (v *Verse) HasAudio() bool {
	return v.Audio != nil && v.Audio.AudioURL != ""
}

type Chapter struct {
	ChapterNumber int       `bson:"chapterNumber" json:"chapterNumber"`
	Title         string    `bson:"title" json:"title"`
	Subtitle      string    `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	Description   string    `bson:"description,omitempty" json:"description,omitempty"`
	Introduction  string    `bson:"introduction,omitempty" json:"introduction,omitempty"`
	Tags          []string  `bson:"tags" json:"tags"`
	VerseCount    int       `bson:"verseCount" json:"verseCount"`
	Verses        []Verse   `bson:"verses" json:"verses"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VerseByNumber returns the verse labelled n, or nil.
func (c *Chapter) VerseByNumber(n string) *Verse {
	for i := range c.Verses {
		if c.Verses[i].VerseNumber == n {
			return &c.Verses[i]
		}
	}
	return nil
}

// Summary returns the chapter without its verses.
func (c *Chapter) Summary() ChapterSummary {
	return ChapterSummary{
		ChapterNumber: c.ChapterNumber,
		Title:         c.Title,
		Subtitle:      c.Subtitle,
		Description:   c.Description,
		Introduction:  c.Introduction,
		Tags:          c.Tags,
		VerseCount:    len(c.Verses),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// BookMetadata is publication data, usually filled from an ISBN lookup.
type BookMetadata struct {
	ISBN             string   `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Publisher        string   `bson:"publisher,omitempty" json:"publisher,omitempty"`
	PublishedDate    string   `bson:"publishedDate,omitempty" json:"publishedDate,omitempty"`
	Edition          string   `bson:"edition,omitempty" json:"edition,omitempty"`
	PageCount        int      `bson:"pageCount,omitempty" json:"pageCount,omitempty"`
	Language         string   `bson:"language,omitempty" json:"language,omitempty"`
	Translators      []string `bson:"translators,omitempty" json:"translators,omitempty"`
	OriginalLanguage string   `bson:"originalLanguage,omitempty" json:"originalLanguage,omitempty"`
	Copyright        string   `bson:"copyright,omitempty" json:"copyright,omitempty"`
}

// Book is the root document. It owns its chapters and they own their verses;
// one Book is stored as one document.
type Book struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Slug            string             `bson:"slug" json:"slug"`
	Title           string             `bson:"title" json:"title"`
	Subtitle        string             `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	Description     string             `bson:"description" json:"description"`
	Author          string             `bson:"author" json:"author"`
	Category        BookCategory       `bson:"category" json:"category"`
	Status          BookStatus         `bson:"status" json:"status"`
	CoverImageURL   string             `bson:"coverImageUrl,omitempty" json:"coverImageUrl,omitempty"`
	CoverS3Key      string             `bson:"coverS3Key,omitempty" json:"-"`
	Tags            []string           `bson:"tags" json:"tags"`
	Preface         string             `bson:"preface,omitempty" json:"preface,omitempty"`
	Introduction    string             `bson:"introduction,omitempty" json:"introduction,omitempty"`
	Dedication      string             `bson:"dedication,omitempty" json:"dedication,omitempty"`
	SettingTheScene string             `bson:"settingTheScene,omitempty" json:"settingTheScene,omitempty"`
	Chapters        []Chapter          `bson:"chapters" json:"chapters"`
	ChapterCount    int                `bson:"chapterCount" json:"chapterCount"`
	TotalVerses     int                `bson:"totalVerses" json:"totalVerses"`
	Metadata        *BookMetadata      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	ViewCount       int64              `bson:"viewCount" json:"viewCount"`
	DownloadCount   int64              `bson:"downloadCount" json:"downloadCount"`
	FeaturedUntil   *time.Time         `bson:"featuredUntil,omitempty" json:"featuredUntil,omitempty"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	AllowComments   bool               `bson:"allowComments" json:"allowComments"`
	AllowDownload   bool               `bson:"allowDownload" json:"allowDownload"`
	MetaTitle       string             `bson:"metaTitle,omitempty" json:"metaTitle,omitempty"`
	MetaDescription string             `bson:"metaDescription,omitempty" json:"metaDescription,omitempty"`
	MetaKeywords    []string           `bson:"metaKeywords,omitempty" json:"metaKeywords,omitempty"`
	Version         int                `bson:"version" json:"version"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RecountCounters rederives every denormalized counter from the nested arrays.
// It must run before any write that touches Chapters.
func (b *Book) RecountCounters() {
	total := 0
	for i := range b.Chapters {
		b.Chapters[i].VerseCount = len(b.Chapters[i].Verses)
		total += b.Chapters[i].VerseCount
	}
	b.ChapterCount = len(b.Chapters)
	b.TotalVerses = total
}

// ChapterByNumber returns the chapter numbered n, or nil.
func (b *Book) ChapterByNumber(n int) *Chapter {
	for i := range b.Chapters {
		if b.Chapters[i].ChapterNumber == n {
			return &b.Chapters[i]
		}
	}
	return nil
}

// IsFeatured reports whether featuredUntil is set and not yet passed at now.
func (b *Book) IsFeatured(now time.Time) bool {
	return b.FeaturedUntil != nil && !b.FeaturedUntil.Before(now)
}

func (b *Book) Ref() BookRef {
	return BookRef{Title: b.Title, Slug: b.Slug, Author: b.Author}
}

// StripLargeVerseFields drops purport and synonyms from every verse, which is
// what list endpoints return.
func (b *Book) StripLargeVerseFields() {
	for i := range b.Chapters {
		for j := range b.Chapters[i].Verses {
			b.Chapters[i].Verses[j].Purport = ""
			b.Chapters[i].Verses[j].Synonyms = nil
		}
	}
}

// BookRef identifies a book inside chapter and verse responses.
type BookRef struct {
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Author string `json:"author"`
}

type ChapterRef struct {
	ChapterNumber int    `json:"chapterNumber"`
	Title         string `json:"title"`
}

type ChapterSummary struct {
	ChapterNumber int       `json:"chapterNumber"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle,omitempty"`
	Description   string    `json:"description,omitempty"`
	Introduction  string    `json:"introduction,omitempty"`
	Tags          []string  `json:"tags"`
	VerseCount    int       `json:"verseCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Statistics is the aggregate view over the whole collection.
type Statistics struct {
	Overview   StatisticsOverview `json:"overview"`
	ByCategory []CategoryCount    `json:"byCategory"`
}

type StatisticsOverview struct {
	TotalBooks     int64 `bson:"totalBooks" json:"totalBooks"`
	ActiveBooks    int64 `bson:"activeBooks" json:"activeBooks"`
	PublishedBooks int64 `bson:"publishedBooks" json:"publishedBooks"`
	TotalChapters  int64 `bson:"totalChapters" json:"totalChapters"`
	TotalVerses    int64 `bson:"totalVerses" json:"totalVerses"`
	TotalViews     int64 `bson:"totalViews" json:"totalViews"`
	TotalDownloads int64 `bson:"totalDownloads" json:"totalDownloads"`
}

type CategoryCount struct {
	Category BookCategory `bson:"_id" json:"category"`
	Count    int64        `bson:"count" json:"count"`
}
