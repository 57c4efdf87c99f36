package service

import (
	"context"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/store"
)

// Relevance weights per matching field.
const (
	scoreTitle        = 10
	scoreAuthor       = 6
	scoreDescription  = 4
	scoreChapterTitle = 3
	scoreVerseField   = 1
)

// SearchHit is one book matched by GlobalSearch.
type SearchHit struct {
	ID            primitive.ObjectID `json:"id"`
	Title         string             `json:"title"`
	Slug          string             `json:"slug"`
	Author        string             `json:"author"`
	Description   string             `json:"description"`
	CoverImageURL string             `json:"coverImageUrl,omitempty"`
	Score         int                `json:"score"`
}

// relevance scores how strongly b matches term. Every nested match adds to the
// score, so a book quoting the term in many verses ranks above one that
// mentions it once.
func relevance(b *models.Book, term string) int {
	score := 0
	if store.ContainsFold(b.Title, term) {
		score += scoreTitle
	}
	if store.ContainsFold(b.Author, term) {
		score += scoreAuthor
	}
	if store.ContainsFold(b.Description, term) {
		score += scoreDescription
	}
	for i := range b.Chapters {
		ch := &b.Chapters[i]
		if store.ContainsFold(ch.Title, term) {
			score += scoreChapterTitle
		}
		for j := range ch.Verses {
			v := &ch.Verses[j]
			for _, field := range []string{v.Translation, v.Purport, v.SanskritText} {
				if field != "" && store.ContainsFold(field, term) {
					score += scoreVerseField
				}
			}
		}
	}
	return score
}

// GlobalSearch finds active books whose own fields, chapter titles or verse
// texts contain term. Results are books ranked by relevance; equal scores keep
// storage order. Total counts matching books.
func (c *Catalog) GlobalSearch(ctx context.Context, term string, page, limit int) (*models.Page[SearchHit], error) {
	req := searchRequest{Term: strings.TrimSpace(term), Page: page, Limit: limit}
	pageDefaults(&req.Page, &req.Limit, defaultSearchLimit)
	if err := c.validate.Validate(req); err != nil {
		return nil, err
	}

	books, err := c.books.SearchBooks(ctx, req.Term)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(books))
	for i := range books {
		b := &books[i]
		hits = append(hits, SearchHit{
			ID:            b.ID,
			Title:         b.Title,
			Slug:          b.Slug,
			Author:        b.Author,
			Description:   b.Description,
			CoverImageURL: b.CoverImageURL,
			Score:         relevance(b, req.Term),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	result := models.Paginate(hits, req.Page, req.Limit)
	return &result, nil
}
