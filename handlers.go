// handlers.go
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// handleWebhook is the entry point for all Messenger webhook traffic.
// GET requests are Facebook's subscription verification; POST requests
// carry events and are acknowledged before processing so Facebook never
// retries while we work.
func handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		handleGetRequest(w, r)
		return
	}

	if r.Method == "POST" {
		handlePostRequest(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleGetRequest handles Facebook webhook verification (GET requests)
func handleGetRequest(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "" && token != "" && challenge != "" {
		if mode == "subscribe" && token == config.VerifyToken {
			log.Printf("✅ Facebook webhook verification successful!")
			w.Write([]byte(challenge))
			return
		}
		log.Printf("❌ Facebook webhook verification failed")
		http.Error(w, "Invalid verification token", http.StatusForbidden)
		return
	}

	log.Printf("❌ Incomplete webhook verification parameters")
	http.Error(w, "Bad request", http.StatusBadRequest)
}

// handlePostRequest handles incoming webhook data (POST requests)
func handlePostRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	requestID := generateRequestID()
	LogDebug("[%s] 📥 Raw webhook payload: %d bytes", requestID, len(body))

	var event FacebookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		LogError("[%s] Error parsing webhook JSON: %v", requestID, err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	// Only page subscriptions belong to this bot.
	if event.Object != "page" {
		LogWarn("[%s] Unsupported webhook object %q", requestID, event.Object)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	totalMessages := 0
	for _, entry := range event.Entry {
		totalMessages += len(entry.Messaging)
	}

	LogInfo("[%s] 📝 Webhook: %s, %d entries, %d messages",
		requestID, event.Object, len(event.Entry), totalMessages)

	// Acknowledge first; Facebook retries anything slower than a few
	// seconds.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))

	if totalMessages == 0 {
		LogDebug("[%s] No messages to process", requestID)
		return
	}

	go processMessagesAsync(context.Background(), event, requestID)
}

// handleHealthz reports whether the service and its database are up.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := mongoClient.Ping(ctx, nil); err != nil {
		LogError("❌ Health check failed: %v", err)
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}

	w.Write([]byte("ok"))
}
