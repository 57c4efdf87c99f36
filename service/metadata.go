package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/models"
)

const DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1/volumes"

// volumesResponse is the part of GET /volumes?q=isbn:... we read.
type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			PageCount           int      `json:"pageCount"`
			Language            string   `json:"language"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// MetadataClient looks up publication data by ISBN on the Google Books API.
type MetadataClient struct {
	http    *http.Client
	baseURL string
}

// NewMetadataClient uses a short timeout so a hung lookup never holds a request.
func NewMetadataClient(baseURL string) *MetadataClient {
	if baseURL == "" {
		baseURL = DefaultGoogleBooksURL
	}
	return &MetadataClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
	}
}

// NormalizeISBN strips spaces and hyphens.
func NormalizeISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.ReplaceAll(isbn, "-", "")
	return strings.ReplaceAll(isbn, " ", "")
}

// LookupISBN returns metadata for the first volume matching isbn. No match is
// NOT_FOUND; upstream failures are INTERNAL.
func (c *MetadataClient) LookupISBN(ctx context.Context, isbn string) (*models.BookMetadata, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, apperrors.InvalidInput("isbn is required")
	}
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.Internal("metadata lookup failed", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Internal("metadata lookup failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Internal("metadata lookup failed", fmt.Errorf("google books returned %d", resp.StatusCode))
	}

	var data volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, apperrors.Internal("metadata lookup failed", err)
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, apperrors.NotFound("no volume found for isbn %s", isbn)
	}

	vi := data.Items[0].VolumeInfo
	meta := &models.BookMetadata{
		ISBN:          isbn,
		Publisher:     vi.Publisher,
		PublishedDate: vi.PublishedDate,
		PageCount:     vi.PageCount,
		Language:      vi.Language,
	}
	// Prefer ISBN-13 when the volume lists both.
	for _, id := range vi.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			meta.ISBN = id.Identifier
			break
		}
		if id.Type == "ISBN_10" {
			meta.ISBN = id.Identifier
		}
	}
	return meta, nil
}
