// message_processor.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/djamal195/last/cache"
	"github.com/djamal195/last/sheets"
)

// User-facing replies. The bot speaks French.
const (
	youtubeModeMessage = "Mode YouTube activé. Donnez-moi les mots-clés pour la recherche YouTube."
	mistralModeMessage = "Mode Mistral réactivé. Comment puis-je vous aider ?"

	nonTextMessage      = "Désolé, je ne peux traiter que des messages texte."
	genericErrorMessage = "Désolé, j'ai rencontré une erreur en traitant votre message. Veuillez réessayer plus tard."
	timeoutErrorMessage = "Désolé, la génération de la réponse a pris trop de temps. Veuillez réessayer avec une question plus courte ou plus simple."
	postbackErrorMsg    = "Désolé, je n'ai pas pu traiter votre demande. Veuillez réessayer plus tard."

	youtubeSearchError = "Désolé, je n'ai pas pu effectuer la recherche YouTube. Veuillez réessayer plus tard."
	youtubeNoResults   = "Aucune vidéo trouvée pour cette recherche. Essayez d'autres mots-clés."

	imdbUsageMessage    = "Donnez-moi un titre à chercher, par exemple : /imdb Inception"
	imdbDisabledMessage = "La recherche de films n'est pas disponible pour le moment."
	imdbSearchError     = "Désolé, je n'ai pas pu effectuer la recherche IMDb. Veuillez réessayer plus tard."
	imdbNoResults       = "Aucun film ou série trouvé pour cette recherche."

	imageUsageMessage      = "Décrivez l'image à générer, par exemple : /image un chat astronaute"
	imageDisabledMessage   = "La génération d'images n'est pas disponible pour le moment."
	imageGeneratingMessage = "Génération de l'image en cours... Cela peut prendre quelques instants."
	imageErrorMessage      = "Désolé, je n'ai pas pu générer l'image. Veuillez réessayer plus tard."

	historyClearedMessage = "Votre historique de conversation a été effacé. Nous repartons de zéro !"

	movieRequestConfirmation = "Votre demande pour « %s » a bien été enregistrée. Nous vous préviendrons dès que possible !"
)

// processMessagesAsync walks a webhook event and handles each entry.
// It runs after the webhook has already been acknowledged, so failures
// here turn into chat replies, never HTTP errors.
func processMessagesAsync(ctx context.Context, event FacebookEvent, requestID string) {
	LogDebug("[%s] 🔄 Starting async message processing", requestID)

	for _, entry := range event.Entry {
		if len(entry.Messaging) == 0 {
			LogDebug("[%s] No messages in entry %s", requestID, entry.ID)
			continue
		}

		for msgIndex, msg := range entry.Messaging {
			if !filterAndValidateMessage(msg, requestID, msgIndex) {
				continue
			}

			if msg.Postback != nil {
				handlePostback(ctx, msg, requestID)
				continue
			}

			handleUserMessage(ctx, msg, requestID)
		}
	}

	LogDebug("[%s] ✅ Async message processing completed", requestID)
}

// filterAndValidateMessage drops receipts, echoes and duplicates.
func filterAndValidateMessage(msg MessagingEntry, requestID string, msgIndex int) bool {
	// Skip non-message events (delivery and read receipts)
	if msg.Delivery != nil {
		LogDebug("[%s] Skipping delivery receipt", requestID)
		return false
	}
	if msg.Read != nil {
		LogDebug("[%s] Skipping read receipt", requestID)
		return false
	}

	if msg.Postback != nil {
		LogInfo("[%s] 🔘 Postback %d: sender=%s, title=%q",
			requestID, msgIndex, msg.Sender.ID, msg.Postback.Title)
		return true
	}

	if msg.Message == nil {
		LogDebug("[%s] Skipping entry without message from %s", requestID, msg.Sender.ID)
		return false
	}

	// Our own replies come back as echoes; processing them would loop.
	if msg.Message.IsEcho {
		LogDebug("[%s] Skipping echo message (app_id: %d)", requestID, msg.Message.AppId)
		return false
	}

	// Facebook redelivers events it thinks we missed.
	if msg.Message.Mid != "" && !cache.MarkSeen(msg.Message.Mid) {
		LogInfo("[%s] ⏭️ Skipping duplicate message %s", requestID, msg.Message.Mid)
		return false
	}

	LogInfo("[%s] 📨 Raw message %d: sender=%s, text=%q, attachments=%d",
		requestID, msgIndex, msg.Sender.ID, msg.Message.Text, len(msg.Message.Attachments))
	return true
}

// handleUserMessage answers one user message, mapping failures to the
// French error replies.
func handleUserMessage(ctx context.Context, msg MessagingEntry, requestID string) {
	senderID := msg.Sender.ID

	if msg.Message.Text == "" {
		LogInfo("[%s] Non-text message from %s", requestID, senderID)
		sendReply(ctx, senderID, nonTextMessage, requestID)
		return
	}

	if err := routeTextMessage(ctx, senderID, msg.Message.Text, requestID); err != nil {
		LogError("[%s] ❌ Error handling message from %s: %v", requestID, senderID, err)

		reply := genericErrorMessage
		if isTimeoutError(err) {
			reply = timeoutErrorMessage
		}
		sendReply(ctx, senderID, reply, requestID)
	}
}

// routeTextMessage dispatches on mode-switch keywords, then slash
// commands, then the user's stored mode.
func routeTextMessage(ctx context.Context, senderID, text, requestID string) error {
	trimmed := strings.TrimSpace(text)

	switch strings.ToLower(trimmed) {
	case "/yt":
		if err := setUserMode(ctx, senderID, ModeYoutube); err != nil {
			return err
		}
		log.Printf("🎛️ User %s switched to youtube mode", senderID)
		return sendTextMessage(ctx, senderID, youtubeModeMessage)
	case "yt/":
		if err := setUserMode(ctx, senderID, ModeMistral); err != nil {
			return err
		}
		log.Printf("🎛️ User %s switched to mistral mode", senderID)
		return sendTextMessage(ctx, senderID, mistralModeMessage)
	}

	if cmd, rest := extractCommand(trimmed); cmd != "" {
		switch cmd {
		case "imdb":
			return handleImdbCommand(ctx, senderID, rest, requestID)
		case "image":
			return handleImageCommand(ctx, senderID, rest, requestID)
		case "reset":
			return handleResetCommand(ctx, senderID, requestID)
		}
		// Unknown commands fall through and read as plain text.
	}

	mode, err := getUserMode(ctx, senderID)
	if err != nil {
		LogWarn("[%s] Mode lookup failed for %s, defaulting to mistral: %v", requestID, senderID, err)
		mode = ModeMistral
	}

	if mode == ModeYoutube {
		return handleYoutubeSearch(ctx, senderID, text, requestID)
	}
	return handleMistralMessage(ctx, senderID, text, requestID)
}

func handleYoutubeSearch(ctx context.Context, senderID, query, requestID string) error {
	log.Printf("🔎 YouTube search for %s: %q", senderID, query)

	videos, err := ytClient.Search(ctx, query)
	if err != nil {
		LogError("[%s] ❌ YouTube search failed: %v", requestID, err)
		return sendTextMessage(ctx, senderID, youtubeSearchError)
	}
	if len(videos) == 0 {
		return sendTextMessage(ctx, senderID, youtubeNoResults)
	}

	return sendYoutubeResults(ctx, senderID, videos)
}

func handleMistralMessage(ctx context.Context, senderID, text, requestID string) error {
	// Memory is best effort; the answer matters more than the recall.
	if err := convStore.AddMessage(ctx, senderID, "user", text); err != nil {
		LogWarn("[%s] Could not record user message: %v", requestID, err)
	}

	history, err := convStore.History(ctx, senderID)
	if err != nil {
		LogWarn("[%s] Could not load history for %s: %v", requestID, senderID, err)
		history = nil
	}

	log.Printf("🤖 Generating response for %s (%d history messages)", senderID, len(history))
	response, err := mistralClient.Generate(ctx, history, text)
	if err != nil {
		return err
	}

	if err := sendTextMessage(ctx, senderID, response); err != nil {
		return err
	}

	if err := convStore.AddMessage(ctx, senderID, "assistant", response); err != nil {
		LogWarn("[%s] Could not record assistant reply: %v", requestID, err)
	}
	return nil
}

func handleImdbCommand(ctx context.Context, senderID, query, requestID string) error {
	if imdbClient == nil {
		return sendTextMessage(ctx, senderID, imdbDisabledMessage)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return sendTextMessage(ctx, senderID, imdbUsageMessage)
	}

	log.Printf("🎥 IMDb search for %s: %q", senderID, query)
	results, err := imdbClient.Search(ctx, query)
	if err != nil {
		LogError("[%s] ❌ IMDb search failed: %v", requestID, err)
		return sendTextMessage(ctx, senderID, imdbSearchError)
	}
	if len(results) == 0 {
		return sendTextMessage(ctx, senderID, imdbNoResults)
	}

	return sendImdbResults(ctx, senderID, results)
}

func handleImageCommand(ctx context.Context, senderID, prompt, requestID string) error {
	if dalleClient == nil {
		return sendTextMessage(ctx, senderID, imageDisabledMessage)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return sendTextMessage(ctx, senderID, imageUsageMessage)
	}

	if err := sendTextMessage(ctx, senderID, imageGeneratingMessage); err != nil {
		return err
	}

	log.Printf("🎨 Generating image for %s: %q", senderID, prompt)
	img, err := dalleClient.Generate(ctx, prompt)
	if err != nil {
		LogError("[%s] ❌ Image generation failed: %v", requestID, err)
		return sendTextMessage(ctx, senderID, imageErrorMessage)
	}

	imageURL := img.URL
	if imageURL == "" {
		// Base64 payloads need a hosted copy before Messenger accepts
		// them.
		if cloudinaryService == nil {
			LogError("[%s] ❌ Got image bytes but no host configured", requestID)
			return sendTextMessage(ctx, senderID, imageErrorMessage)
		}
		imageURL, err = cloudinaryService.UploadImage(ctx, bytes.NewReader(img.Data), imagePublicID())
		if err != nil {
			LogError("[%s] ❌ Image upload failed: %v", requestID, err)
			return sendTextMessage(ctx, senderID, imageErrorMessage)
		}
	}

	return sendImageMessage(ctx, senderID, imageURL)
}

// imagePublicID names one hosted generation. Uploads overwrite on name
// collision, so the ID carries a full UUID.
func imagePublicID() string {
	return "dalle_" + uuid.NewString()
}

// handleResetCommand forgets the user's conversation history.
func handleResetCommand(ctx context.Context, senderID, requestID string) error {
	if err := convStore.ClearUserHistory(ctx, senderID); err != nil {
		LogError("[%s] ❌ Could not clear history for %s: %v", requestID, senderID, err)
		return sendTextMessage(ctx, senderID, genericErrorMessage)
	}

	log.Printf("🧹 History reset requested by %s", senderID)
	return sendTextMessage(ctx, senderID, historyClearedMessage)
}

// handlePostback reacts to button presses from templates we sent.
func handlePostback(ctx context.Context, msg MessagingEntry, requestID string) {
	senderID := msg.Sender.ID

	var payload PostbackPayload
	if err := json.Unmarshal([]byte(msg.Postback.Payload), &payload); err != nil {
		LogError("[%s] ❌ Error parsing postback payload: %v", requestID, err)
		sendReply(ctx, senderID, postbackErrorMsg, requestID)
		return
	}

	switch payload.Action {
	case "watch_video":
		log.Printf("▶️ watch_video postback from %s for %s", senderID, payload.VideoID)
		handleWatchVideo(ctx, senderID, payload.VideoID, payload.Title)
	case "request_movie":
		log.Printf("📝 request_movie postback from %s for %s", senderID, payload.Title)
		handleMovieRequest(ctx, senderID, payload, requestID)
	default:
		LogInfo("[%s] Unrecognized postback action: %q", requestID, payload.Action)
	}
}

// handleMovieRequest logs the request to the shared spreadsheet and
// confirms in the chat.
func handleMovieRequest(ctx context.Context, senderID string, payload PostbackPayload, requestID string) {
	if sheetsService == nil {
		LogWarn("[%s] Movie request received but the request log is not configured", requestID)
		sendReply(ctx, senderID, postbackErrorMsg, requestID)
		return
	}

	userName := profileName(ctx, senderID)

	err := sheetsService.AddRequest(ctx, senderID, userName, sheets.MovieRequest{
		Title:   payload.Title,
		Type:    payload.Type,
		ImdbID:  payload.ImdbID,
		ImdbURL: payload.ImdbURL,
		Year:    payload.Year,
	})
	if err != nil {
		LogError("[%s] ❌ Could not log movie request: %v", requestID, err)
		sendReply(ctx, senderID, postbackErrorMsg, requestID)
		return
	}

	sendReply(ctx, senderID, fmt.Sprintf(movieRequestConfirmation, payload.Title), requestID)
}

// profileName resolves the user's display name, via cache when possible.
// Lookups are non-critical; failures fall back to a placeholder.
func profileName(ctx context.Context, userID string) string {
	name, err := cache.GetProfileName(userID, func(id string) (string, error) {
		return getUserProfile(ctx, id)
	})
	if err != nil || name == "" {
		LogDebug("Could not get user name for %s: %v", userID, err)
		return "user"
	}
	return name
}

func getUserMode(ctx context.Context, userID string) (string, error) {
	return cache.GetUserMode(userID, func(id string) (string, error) {
		return userStore.GetMode(ctx, id)
	})
}

func setUserMode(ctx context.Context, userID, mode string) error {
	if err := userStore.SetMode(ctx, userID, mode); err != nil {
		return err
	}
	cache.SetUserMode(userID, mode)
	return nil
}

// sendReply sends a text reply where there is nothing useful left to do
// about a failure but log it.
func sendReply(ctx context.Context, recipientID, message, requestID string) {
	if err := sendTextMessage(ctx, recipientID, message); err != nil {
		LogError("[%s] ❌ Error sending reply to %s: %v", requestID, recipientID, err)
	}
}

// isTimeoutError reports whether the failure was a timeout rather than
// a hard error, so the user gets the dedicated advice.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
