// Package books searches book metadata in the Google Books volumes API.
package books

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/metrics"
)

// MetadataSearchError is a failed book search.
type MetadataSearchError struct {
	Query  string
	Reason string
	Err    error
}

func (e *MetadataSearchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("book search %q: %s", e.Query, e.Reason)
	}
	return fmt.Sprintf("book search %q: %s: %v", e.Query, e.Reason, e.Err)
}

func (e *MetadataSearchError) Unwrap() error { return e.Err }

// Candidate is one search result a user can attach to a quote.
type Candidate struct {
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	Identifier   string   `json:"identifier"`
}

// Attribution maps the candidate onto the item fields it fills in.
func (c Candidate) Attribution() item.Attribution {
	return item.Attribution{
		Source:   c.Title,
		Author:   strings.Join(c.Authors, ", "),
		CoverURL: c.ThumbnailURL,
		BookID:   c.Identifier,
	}
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title      string   `json:"title"`
	Subtitle   string   `json:"subtitle"`
	Authors    []string `json:"authors"`
	ImageLinks struct {
		SmallThumbnail string `json:"smallThumbnail"`
		Thumbnail      string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type Client struct {
	httpClient *resty.Client
	apiKey     string
	maxResults int
	recorder   metrics.Recorder
}

func NewClient(cfg config.BooksConfig, recorder metrics.Recorder) *Client {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Client{
		httpClient: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		recorder:   recorder,
	}
}

// Search returns up to the configured number of candidates for query.
func (c *Client) Search(ctx context.Context, query string) (candidates []Candidate, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &MetadataSearchError{Query: query, Reason: "query is empty"}
	}

	start := time.Now()
	defer func() {
		metrics.Since(c.recorder, "google_books", start, err)
	}()

	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("printType", "books").
		SetResult(&volumesResponse{})
	if c.maxResults > 0 {
		req.SetQueryParam("maxResults", fmt.Sprint(c.maxResults))
	}
	if c.apiKey != "" {
		req.SetQueryParam("key", c.apiKey)
	}

	res, err := req.Get("/books/v1/volumes")
	if err != nil {
		return nil, &MetadataSearchError{Query: query, Reason: "request failed", Err: err}
	}
	if res.IsError() {
		return nil, &MetadataSearchError{
			Query:  query,
			Reason: fmt.Sprintf("status code: %d, body: %s", res.StatusCode(), string(res.Body())),
		}
	}

	body := res.Result().(*volumesResponse)
	candidates = make([]Candidate, 0, len(body.Items))
	for _, v := range body.Items {
		if strings.TrimSpace(v.VolumeInfo.Title) == "" {
			continue
		}
		candidates = append(candidates, toCandidate(v))
	}
	return candidates, nil
}

func toCandidate(v volume) Candidate {
	thumbnail := v.VolumeInfo.ImageLinks.Thumbnail
	if thumbnail == "" {
		thumbnail = v.VolumeInfo.ImageLinks.SmallThumbnail
	}
	return Candidate{
		Title:        strings.TrimSpace(v.VolumeInfo.Title),
		Authors:      v.VolumeInfo.Authors,
		ThumbnailURL: secureURL(thumbnail),
		Identifier:   v.ID,
	}
}

// secureURL upgrades http thumbnails so clients served over https can load them.
func secureURL(u string) string {
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}
	return u
}
