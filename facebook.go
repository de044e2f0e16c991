// facebook.go
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/djamal195/last/imdb"
	"github.com/djamal195/last/youtube"
)

// graphAPIURL is a variable so tests can point sends at a local server.
var graphAPIURL = "https://graph.facebook.com/v19.0"

const (
	// Messenger rejects text messages over 2000 characters.
	maxMessageLength = 2000

	// A generic template carries at most ten cards.
	maxTemplateElements = 10
)

// validateFacebookRequest is middleware to validate webhook requests
func validateFacebookRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 Incoming %s request from %s", r.Method, r.RemoteAddr)

		if r.Method == "POST" {
			signature := r.Header.Get("X-Hub-Signature-256")
			if !strings.HasPrefix(signature, "sha256=") {
				log.Printf("❌ Missing or malformed signature header")
				http.Error(w, "Missing signature", http.StatusUnauthorized)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				log.Printf("❌ Error reading request body: %v", err)
				http.Error(w, "Error reading body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(body))

			appSecret := []byte(config.FacebookAppSecret)
			expectedSig := generateFacebookSignature(body, appSecret)

			if !hmac.Equal([]byte(signature[7:]), []byte(expectedSig)) {
				log.Printf("❌ Invalid signature")
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}
			LogDebug("✅ Signature verified successfully")
		}
		next(w, r)
	}
}

// generateFacebookSignature creates HMAC SHA256 signature for request verification
func generateFacebookSignature(body []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// callSendAPI posts one payload to the Messenger Send API.
func callSendAPI(ctx context.Context, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error creating Facebook payload: %v", err)
	}

	fbURL := fmt.Sprintf("%s/me/messages?access_token=%s", graphAPIURL, config.PageAccessToken)

	// Log payload details only in debug mode
	LogDebug("📤 Facebook payload: %s", string(jsonData))

	req, err := http.NewRequestWithContext(ctx, "POST", fbURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating Facebook request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending to Facebook: %v", err)
	}
	defer resp.Body.Close()

	fbResp, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facebook error (status %d): %s", resp.StatusCode, string(fbResp))
	}

	LogDebug("✅ Facebook response (%d): %s", resp.StatusCode, string(fbResp))
	return nil
}

// sendTextMessage sends a text reply, split into Messenger-sized chunks.
func sendTextMessage(ctx context.Context, recipientID string, message string) error {
	for _, chunk := range splitText(message, maxMessageLength) {
		payload := map[string]interface{}{
			"recipient": map[string]string{
				"id": recipientID,
			},
			"message": map[string]string{
				"text": chunk,
			},
		}
		if err := callSendAPI(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// sendAttachmentMessage sends a hosted media file as an attachment.
func sendAttachmentMessage(ctx context.Context, recipientID, attachmentType, url string) error {
	payload := map[string]interface{}{
		"recipient": map[string]string{
			"id": recipientID,
		},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": attachmentType,
				"payload": map[string]interface{}{
					"url":         url,
					"is_reusable": true,
				},
			},
		},
	}
	return callSendAPI(ctx, payload)
}

func sendVideoMessage(ctx context.Context, recipientID string, videoURL string) error {
	return sendAttachmentMessage(ctx, recipientID, "video", videoURL)
}

func sendImageMessage(ctx context.Context, recipientID string, imageURL string) error {
	return sendAttachmentMessage(ctx, recipientID, "image", imageURL)
}

type templateButton struct {
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title"`
	Payload string `json:"payload,omitempty"`
}

type templateElement struct {
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle,omitempty"`
	ImageURL string           `json:"image_url,omitempty"`
	Buttons  []templateButton `json:"buttons"`
}

// sendGenericTemplate sends a horizontal card carousel.
func sendGenericTemplate(ctx context.Context, recipientID string, elements []templateElement) error {
	if len(elements) == 0 {
		return fmt.Errorf("no elements to send")
	}
	if len(elements) > maxTemplateElements {
		elements = elements[:maxTemplateElements]
	}

	payload := map[string]interface{}{
		"recipient": map[string]string{
			"id": recipientID,
		},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": "template",
				"payload": map[string]interface{}{
					"template_type": "generic",
					"elements":      elements,
				},
			},
		},
	}
	return callSendAPI(ctx, payload)
}

// sendYoutubeResults presents search hits as a carousel. Each card links
// to YouTube and offers an in-chat download.
func sendYoutubeResults(ctx context.Context, recipientID string, videos []youtube.Video) error {
	elements := make([]templateElement, 0, len(videos))
	for _, video := range videos {
		downloadPayload, err := json.Marshal(PostbackPayload{
			Action:  "watch_video",
			VideoID: video.ID,
			Title:   video.Title,
		})
		if err != nil {
			return fmt.Errorf("error creating postback payload: %v", err)
		}

		elements = append(elements, templateElement{
			Title:    video.Title,
			ImageURL: video.Thumbnail,
			Buttons: []templateButton{
				{
					Type:  "web_url",
					URL:   youtubeWatchURL(video.ID),
					Title: "Regarder sur YouTube",
				},
				{
					Type:    "postback",
					Title:   "Télécharger et envoyer",
					Payload: string(downloadPayload),
				},
			},
		})
	}
	return sendGenericTemplate(ctx, recipientID, elements)
}

// sendImdbResults presents movie search hits as a carousel. Each card
// links to the IMDb page and lets the user file a request.
func sendImdbResults(ctx context.Context, recipientID string, results []imdb.Result) error {
	elements := make([]templateElement, 0, len(results))
	for _, result := range results {
		requestPayload, err := json.Marshal(PostbackPayload{
			Action:  "request_movie",
			Title:   result.Title,
			Type:    result.Type,
			ImdbID:  result.ID,
			ImdbURL: result.URL,
			Year:    result.Year,
		})
		if err != nil {
			return fmt.Errorf("error creating postback payload: %v", err)
		}

		title := result.Title
		if result.Year != "" {
			title = fmt.Sprintf("%s (%s)", result.Title, result.Year)
		}

		subtitle := result.Type
		if result.Stars != "" {
			subtitle = fmt.Sprintf("%s · %s", result.Type, result.Stars)
		}

		elements = append(elements, templateElement{
			Title:    title,
			Subtitle: truncateText(subtitle, 80),
			ImageURL: result.ImageURL,
			Buttons: []templateButton{
				{
					Type:  "web_url",
					URL:   result.URL,
					Title: "Voir sur IMDb",
				},
				{
					Type:    "postback",
					Title:   "Demander ce film",
					Payload: string(requestPayload),
				},
			},
		})
	}
	return sendGenericTemplate(ctx, recipientID, elements)
}

// getUserProfile retrieves the user's display name from the Graph API.
func getUserProfile(ctx context.Context, userID string) (string, error) {
	apiURL := fmt.Sprintf("%s/%s?fields=first_name,last_name&access_token=%s",
		graphAPIURL, userID, config.PageAccessToken)

	var profile FacebookProfile
	if err := makeAPIRequest(ctx, apiURL, &profile); err != nil {
		return "", err
	}

	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	if name == "" {
		return "", fmt.Errorf("no name found in profile")
	}
	return name, nil
}

// makeAPIRequest is a helper function to make HTTP API requests with JSON decoding
func makeAPIRequest(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error response from API (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("error decoding response: %v", err)
	}

	return nil
}

func youtubeWatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
