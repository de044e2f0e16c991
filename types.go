// types.go
package main

import (
	"time"
)

// User modes. Every user is in exactly one of these; mistral is the default.
const (
	ModeMistral = "mistral"
	ModeYoutube = "youtube"
)

// FacebookEvent represents the incoming webhook event from Facebook
type FacebookEvent struct {
	Object string      `json:"object"`
	Entry  []EntryData `json:"entry"`
}

// EntryData represents each entry in the webhook event
type EntryData struct {
	ID   string `json:"id"`
	Time int64  `json:"time"`
	// Handle messaging events
	Messaging []MessagingEntry `json:"messaging"`
}

// MessagingEntry represents a message in the Facebook webhook
type MessagingEntry struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message  *MessageData  `json:"message"`
	Postback *PostbackData `json:"postback"`
	Delivery *DeliveryData `json:"delivery"`
	Read     *ReadData     `json:"read"`
}

// MessageData represents the actual message content
type MessageData struct {
	Mid         string           `json:"mid"`
	Text        string           `json:"text"`
	IsEcho      bool             `json:"is_echo"`
	AppId       int64            `json:"app_id"`
	Attachments []AttachmentData `json:"attachments"`
}

// AttachmentData represents a non-text attachment on an incoming message
type AttachmentData struct {
	Type string `json:"type"`
}

// PostbackData represents a button press on a template we sent
type PostbackData struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// PostbackPayload is the JSON document we pack into postback buttons.
// Action selects the handler; the remaining fields depend on the action.
type PostbackPayload struct {
	Action  string `json:"action"`
	VideoID string `json:"videoId,omitempty"`
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"`
	ImdbID  string `json:"imdb_id,omitempty"`
	ImdbURL string `json:"imdb_url,omitempty"`
	Year    string `json:"year,omitempty"`
}

// DeliveryData represents a delivery receipt from Facebook
type DeliveryData struct {
	Mids      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// FacebookProfile represents the user profile information from the Graph API
type FacebookProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ReadData represents a read receipt from Facebook
type ReadData struct {
	Watermark int64 `json:"watermark"`
}

// UserState is the per-user mode document in the users collection
type UserState struct {
	UserID    string    `bson:"user_id"`
	Mode      string    `bson:"mode"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// StoredMessage is one turn of conversation memory
type StoredMessage struct {
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

// Conversation is the per-user memory document in the conversations collection
type Conversation struct {
	UserID    string          `bson:"user_id"`
	Messages  []StoredMessage `bson:"messages"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// VideoRecord is a downloaded video in the videos collection. CloudinaryURL
// is the hosted copy we can attach to Messenger messages.
type VideoRecord struct {
	VideoID       string    `bson:"video_id"`
	Title         string    `bson:"title"`
	CloudinaryURL string    `bson:"cloudinary_url"`
	Thumbnail     string    `bson:"thumbnail"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at,omitempty"`
}
