// message_processor_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func textEntry(senderID, text, mid string) MessagingEntry {
	var msg MessagingEntry
	msg.Sender.ID = senderID
	msg.Message = &MessageData{Mid: mid, Text: text}
	return msg
}

func TestFilterAndValidateMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  func() MessagingEntry
		want bool
	}{
		{
			name: "text message passes",
			msg: func() MessagingEntry {
				return textEntry("user-1", "bonjour", "mid.1")
			},
			want: true,
		},
		{
			name: "delivery receipt skipped",
			msg: func() MessagingEntry {
				var m MessagingEntry
				m.Sender.ID = "user-1"
				m.Delivery = &DeliveryData{Watermark: 1234}
				return m
			},
			want: false,
		},
		{
			name: "read receipt skipped",
			msg: func() MessagingEntry {
				var m MessagingEntry
				m.Sender.ID = "user-1"
				m.Read = &ReadData{Watermark: 1234}
				return m
			},
			want: false,
		},
		{
			name: "postback passes",
			msg: func() MessagingEntry {
				var m MessagingEntry
				m.Sender.ID = "user-1"
				m.Postback = &PostbackData{Title: "Télécharger et envoyer", Payload: "{}"}
				return m
			},
			want: true,
		},
		{
			name: "entry without message skipped",
			msg: func() MessagingEntry {
				var m MessagingEntry
				m.Sender.ID = "user-1"
				return m
			},
			want: false,
		},
		{
			name: "echo skipped",
			msg: func() MessagingEntry {
				m := textEntry("page-1", "notre réponse", "mid.2")
				m.Message.IsEcho = true
				m.Message.AppId = 42
				return m
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterAndValidateMessage(tt.msg(), "req-test", 0); got != tt.want {
				t.Errorf("filterAndValidateMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTimeoutError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("generating response: %w", context.DeadlineExceeded), true},
		{"timeout in message", errors.New("request timeout after 30s"), true},
		{"mixed case timeout", errors.New("Timeout waiting for upstream"), true},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTimeoutError(tt.err); got != tt.want {
				t.Errorf("isTimeoutError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHandleUserMessageNonText(t *testing.T) {
	sent := newSendAPIServer(t)

	var msg MessagingEntry
	msg.Sender.ID = "user-1"
	msg.Message = &MessageData{Mid: "mid.3", Attachments: []AttachmentData{{Type: "image"}}}

	handleUserMessage(context.Background(), msg, "req-test")

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != nonTextMessage {
		t.Errorf("reply = %q, want %q", got, nonTextMessage)
	}
}

func TestHandlePostbackBadPayload(t *testing.T) {
	sent := newSendAPIServer(t)

	var msg MessagingEntry
	msg.Sender.ID = "user-1"
	msg.Postback = &PostbackData{Title: "Télécharger et envoyer", Payload: "{not json"}

	handlePostback(context.Background(), msg, "req-test")

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != postbackErrorMsg {
		t.Errorf("reply = %q, want %q", got, postbackErrorMsg)
	}
}

func TestHandlePostbackUnknownAction(t *testing.T) {
	sent := newSendAPIServer(t)

	var msg MessagingEntry
	msg.Sender.ID = "user-1"
	msg.Postback = &PostbackData{Title: "Bouton", Payload: `{"action": "dance"}`}

	handlePostback(context.Background(), msg, "req-test")

	if len(*sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(*sent))
	}
}

func TestHandleWatchVideoMissingID(t *testing.T) {
	sent := newSendAPIServer(t)

	handleWatchVideo(context.Background(), "user-1", "", "Une vidéo")

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != videoProcessingError {
		t.Errorf("reply = %q, want %q", got, videoProcessingError)
	}
}

func TestHandleImdbCommandDisabled(t *testing.T) {
	sent := newSendAPIServer(t)
	imdbClient = nil

	if err := handleImdbCommand(context.Background(), "user-1", "Inception", "req-test"); err != nil {
		t.Fatalf("handleImdbCommand returned error: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != imdbDisabledMessage {
		t.Errorf("reply = %q, want %q", got, imdbDisabledMessage)
	}
}

func TestHandleImageCommandDisabled(t *testing.T) {
	sent := newSendAPIServer(t)
	dalleClient = nil

	if err := handleImageCommand(context.Background(), "user-1", "un chat astronaute", "req-test"); err != nil {
		t.Fatalf("handleImageCommand returned error: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != imageDisabledMessage {
		t.Errorf("reply = %q, want %q", got, imageDisabledMessage)
	}
}

func TestImagePublicID(t *testing.T) {
	id := imagePublicID()
	if !strings.HasPrefix(id, "dalle_") {
		t.Errorf("id = %q, want a dalle_ prefix", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "dalle_")); err != nil {
		t.Errorf("id %q does not carry a full UUID: %v", id, err)
	}
	if other := imagePublicID(); other == id {
		t.Errorf("two generated IDs collide: %q", id)
	}
}

func TestResetCommandStoreUnavailable(t *testing.T) {
	sent := newSendAPIServer(t)

	// A client pointed at a closed port turns every operation into a
	// server selection error after the (shortened) timeout.
	client, err := mongo.Connect(context.Background(), options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("building offline mongo client: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	orig := convStore
	convStore = NewConversationStore(client.Database("test"))
	t.Cleanup(func() { convStore = orig })

	if err := routeTextMessage(context.Background(), "user-1", "/reset", "req-test"); err != nil {
		t.Fatalf("routeTextMessage returned error: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != genericErrorMessage {
		t.Errorf("reply = %q, want %q", got, genericErrorMessage)
	}
}

func TestHandleMovieRequestUnconfigured(t *testing.T) {
	sent := newSendAPIServer(t)
	sheetsService = nil

	payload := PostbackPayload{Action: "request_movie", Title: "Inception"}
	handleMovieRequest(context.Background(), "user-1", payload, "req-test")

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if got := (*sent)[0].Message.Text; got != postbackErrorMsg {
		t.Errorf("reply = %q, want %q", got, postbackErrorMsg)
	}
}
