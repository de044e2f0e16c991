// dalle.go
package dalle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHost = "chatgpt-42.p.rapidapi.com"

	defaultWidth  = 512
	defaultHeight = 512
)

// Image is a generated picture, delivered either as a hosted URL or as
// raw PNG bytes.
type Image struct {
	URL  string
	Data []byte
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
		Timeout: 30 * time.Second,
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
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type generateRequest struct {
	Text   string `json:"text"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// The provider has shipped several response formats over time. Any of
// these fields may carry the image.
type generateResponse struct {
	URL            string `json:"url"`
	GeneratedImage string `json:"generated_image"`
	B64JSON        string `json:"b64_json"`
	Data           string `json:"data"`
}

// Generate renders an image for the prompt at the default 512x512 size.
func (c *Client) Generate(ctx context.Context, prompt string) (*Image, error) {
	payload, err := json.Marshal(generateRequest{
		Text:   prompt,
		Width:  defaultWidth,
		Height: defaultHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.config.BaseURL+"/texttoimage", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("X-RapidAPI-Key", c.config.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.config.Host)
	req.Header.Set("Content-Type", "application/json")

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

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %v, body: %s", err, string(body))
	}

	switch {
	case result.URL != "":
		return &Image{URL: result.URL}, nil
	case result.GeneratedImage != "":
		return &Image{URL: result.GeneratedImage}, nil
	case result.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(result.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("error decoding b64_json: %v", err)
		}
		return &Image{Data: data}, nil
	case result.Data != "":
		// Sometimes delivered as a data URI, sometimes as bare base64.
		raw := result.Data
		if i := strings.Index(raw, "base64,"); i >= 0 {
			raw = raw[i+len("base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("error decoding image data: %v", err)
		}
		return &Image{Data: data}, nil
	}

	return nil, fmt.Errorf("unrecognized image payload: %s", string(body))
}
