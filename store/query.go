package store

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/models"
)

// ContainsFold reports whether substr occurs anywhere in s, ignoring case.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// AnyTag reports whether tags contains at least one of want.
func AnyTag(tags, want []string) bool {
	for _, w := range want {
		for _, t := range tags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// Matches evaluates q against b in memory. It mirrors bookFilter.
func (q BookQuery) Matches(b *models.Book) bool {
	if q.IsActive != nil && b.IsActive != *q.IsActive {
		return false
	}
	if q.Search != "" {
		hit := ContainsFold(b.Title, q.Search) ||
			ContainsFold(b.Description, q.Search) ||
			ContainsFold(b.Author, q.Search)
		for _, tag := range b.Tags {
			if hit {
				break
			}
			hit = ContainsFold(tag, q.Search)
		}
		if !hit {
			return false
		}
	}
	if q.Category != "" && b.Category != q.Category {
		return false
	}
	if q.Status != "" && b.Status != q.Status {
		return false
	}
	if q.Author != "" && !ContainsFold(b.Author, q.Author) {
		return false
	}
	if len(q.Tags) > 0 && !AnyTag(b.Tags, q.Tags) {
		return false
	}
	if q.Featured != nil && b.IsFeatured(q.Now) != *q.Featured {
		return false
	}
	return true
}

// MatchesSearch reports whether term occurs in any searchable field of b.
// It mirrors searchFilter, minus the isActive condition.
func MatchesSearch(b *models.Book, term string) bool {
	if ContainsFold(b.Title, term) || ContainsFold(b.Description, term) || ContainsFold(b.Author, term) {
		return true
	}
	for i := range b.Chapters {
		ch := &b.Chapters[i]
		if ContainsFold(ch.Title, term) {
			return true
		}
		for j := range ch.Verses {
			v := &ch.Verses[j]
			if ContainsFold(v.Translation, term) ||
				(v.Purport != "" && ContainsFold(v.Purport, term)) ||
				(v.SanskritText != "" && ContainsFold(v.SanskritText, term)) {
				return true
			}
		}
	}
	return false
}

// containsRegex matches s literally, anywhere, case-insensitively.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// bookFilter builds the Mongo filter for q. Dimensions are combined under $and
// so that two $or groups (search and featured=false) never overwrite each other.
func bookFilter(q BookQuery) bson.M {
	var and bson.A

	if q.IsActive != nil {
		and = append(and, bson.M{"isActive": *q.IsActive})
	}
	if q.Search != "" {
		re := containsRegex(q.Search)
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"author": re},
			bson.M{"tags": re},
		}})
	}
	if q.Category != "" {
		and = append(and, bson.M{"category": q.Category})
	}
	if q.Status != "" {
		and = append(and, bson.M{"status": q.Status})
	}
	if q.Author != "" {
		and = append(and, bson.M{"author": containsRegex(q.Author)})
	}
	if len(q.Tags) > 0 {
		and = append(and, bson.M{"tags": bson.M{"$in": q.Tags}})
	}
	if q.Featured != nil {
		if *q.Featured {
			and = append(and, bson.M{"featuredUntil": bson.M{"$gte": q.Now}})
		} else {
			// {featuredUntil: null} also matches documents without the field.
			and = append(and, bson.M{"$or": bson.A{
				bson.M{"featuredUntil": nil},
				bson.M{"featuredUntil": bson.M{"$lt": q.Now}},
			}})
		}
	}

	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

// bookSort orders by the requested key, then by _id so ties keep insertion order.
func bookSort(q BookQuery) bson.D {
	key := q.SortBy
	if key == "" {
		key = SortCreatedAt
	}
	dir := 1
	if q.SortDesc {
		dir = -1
	}
	return bson.D{{Key: key, Value: dir}, {Key: "_id", Value: 1}}
}

// listProjection drops the large per-verse fields from list results.
var listProjection = bson.M{
	"chapters.verses.purport":  0,
	"chapters.verses.synonyms": 0,
}

func searchFilter(term string) bson.M {
	re := containsRegex(term)
	return bson.M{
		"isActive": true,
		"$or": bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"author": re},
			bson.M{"chapters.title": re},
			bson.M{"chapters.verses.translation": re},
			bson.M{"chapters.verses.purport": re},
			bson.M{"chapters.verses.sanskritText": re},
		},
	}
}
