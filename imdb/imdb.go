// imdb.go
package imdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultHost = "imdb236.p.rapidapi.com"

	// The autocomplete endpoint returns way more entries than a
	// Messenger carousel can hold.
	maxResults = 5
)

// Result is one entry from an autocomplete search.
type Result struct {
	Title    string
	Type     string // "film" or "série"
	ID       string
	URL      string
	ImageURL string
	Year     string
	Stars    string
}

// Detail holds the full record for a single title.
type Detail struct {
	Title    string
	Type     string
	ID       string
	URL      string
	ImageURL string
	Year     string
	Rating   string
	Plot     string
}

type Config struct {
	APIKey  string
	Host    string
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Host:    defaultHost,
		BaseURL: "https://" + defaultHost,
		Timeout: 10 * time.Second,
	}
}

type Client struct {
	config Config
	client *http.Client
}

func New(config Config) *Client {
	if config.Host == "" {
		config.Host = defaultHost
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://" + config.Host
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// The autocomplete API is loose about field names: some deployments use
// the terse keys (l, y, s, i), others the spelled-out ones. Year comes
// back as either a number or a string.
type rawItem struct {
	ID        string    `json:"id"`
	L         string    `json:"l"`
	Title     string    `json:"title"`
	Y         any       `json:"y"`
	Year      any       `json:"year"`
	S         string    `json:"s"`
	Stars     string    `json:"stars"`
	TitleType string    `json:"titleType"`
	Qid       string    `json:"qid"`
	Q         string    `json:"q"`
	I         *rawImage `json:"i"`
	Image     *rawImage `json:"image"`
}

type rawImage struct {
	ImageURL string `json:"imageUrl"`
	URL      string `json:"url"`
}

// Search looks up movies and series matching the query, capped at five
// results.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	endpoint := c.config.BaseURL + "/imdb/autocomplete?query=" + url.QueryEscape(query)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// The response is either a bare list or an object wrapping one.
	items, err := decodeItems(body)
	if err != nil {
		return nil, fmt.Errorf("error parsing response: %v, body: %s", err, string(body))
	}

	if len(items) > maxResults {
		items = items[:maxResults]
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		title := item.L
		if title == "" {
			title = item.Title
		}

		stars := item.S
		if stars == "" {
			stars = item.Stars
		}

		year := asString(item.Y)
		if year == "" {
			year = asString(item.Year)
		}

		results = append(results, Result{
			Title:    title,
			Type:     itemType(item),
			ID:       item.ID,
			URL:      titleURL(item.ID),
			ImageURL: imageURL(item),
			Year:     year,
			Stars:    stars,
		})
	}

	return results, nil
}

// Details fetches the full record for one IMDb title ID.
func (c *Client) Details(ctx context.Context, imdbID string) (*Detail, error) {
	endpoint := c.config.BaseURL + "/imdb/title?id=" + url.QueryEscape(imdbID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Title     string    `json:"title"`
		Type      string    `json:"type"`
		TitleType string    `json:"titleType"`
		Image     *rawImage `json:"image"`
		Year      any       `json:"year"`
		Rating    any       `json:"rating"`
		Ratings   struct {
			Rating any `json:"rating"`
		} `json:"ratings"`
		Plot        string `json:"plot"`
		PlotSummary struct {
			Text string `json:"text"`
		} `json:"plotSummary"`
		PlotOutline struct {
			Text string `json:"text"`
		} `json:"plotOutline"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing response: %v, body: %s", err, string(body))
	}

	kind := "film"
	switch {
	case raw.Type != "":
		if raw.Type != "movie" {
			kind = "série"
		}
	case raw.TitleType != "":
		if raw.TitleType != "movie" {
			kind = "série"
		}
	}

	rating := asString(raw.Rating)
	if rating == "" {
		rating = asString(raw.Ratings.Rating)
	}

	plot := raw.Plot
	if plot == "" {
		plot = raw.PlotSummary.Text
	}
	if plot == "" {
		plot = raw.PlotOutline.Text
	}

	detail := &Detail{
		Title:  raw.Title,
		Type:   kind,
		ID:     imdbID,
		URL:    titleURL(imdbID),
		Year:   asString(raw.Year),
		Rating: rating,
		Plot:   plot,
	}
	if raw.Image != nil {
		detail.ImageURL = raw.Image.URL
	}

	return detail, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("X-RapidAPI-Key", c.config.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.config.Host)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func decodeItems(body []byte) ([]rawItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []rawItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper struct {
		Results []rawItem `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Results, nil
}

func itemType(item rawItem) string {
	switch {
	case item.TitleType != "":
		if item.TitleType == "tvSeries" || item.TitleType == "TV series" {
			return "série"
		}
	case item.Qid != "":
		if item.Qid == "tvSeries" || item.Q == "TV series" {
			return "série"
		}
	}
	return "film"
}

func imageURL(item rawItem) string {
	if item.I != nil && item.I.ImageURL != "" {
		return item.I.ImageURL
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func titleURL(imdbID string) string {
	return fmt.Sprintf("https://www.imdb.com/title/%s/", imdbID)
}

// asString normalizes a value the API may send as either a JSON number
// or a string.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
