// Package domain provides the domain model of the crafting game and the
// Telegram data that feeds it.
//
// Entities are plain structs embedding Entity. Services exchange them over
// the event bus; topic names and payload shapes live in topics.go and
// payloads.go.
package domain

import (
	"math/rand/v2"
	"time"
)

// maxID bounds generated identities to a positive 32-bit range.
const maxID = 1<<31 - 1

// NewID returns a random identity in [1, 2^31-1).
func NewID() int64 {
	return rand.Int64N(maxID-1) + 1
}

// CanonicalPair orders a symmetric pair so the smaller id comes first.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Entity holds the identity and timestamps shared by every persisted record.
type Entity struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity assigns a fresh identity stamped with now.
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{ID: NewID(), CreatedAt: now, UpdatedAt: now}
}

// Element is a craftable item. Base elements are unlocked for everyone.
type Element struct {
	Entity
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	IsBase bool   `json:"is_base"`
}

// Recipe maps an unordered pair of elements to a result.
// ElementAID < ElementBID always holds for stored rows.
type Recipe struct {
	Entity
	ElementAID int64 `json:"element_a_id"`
	ElementBID int64 `json:"element_b_id"`
	ResultID   int64 `json:"result_id"`
}

// Progress records that a user unlocked an element in a chat instance.
type Progress struct {
	Entity
	UserID       int64  `json:"user_id"`
	ChatInstance string `json:"chat_instance"`
	ElementID    int64  `json:"element_id"`
}

// User is a Telegram user known to the bot.
type User struct {
	Entity
	TelegramID   int64  `json:"telegram_id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsBot        bool   `json:"is_bot"`
}

// Chat is a Telegram chat the bot has seen.
type Chat struct {
	Entity
	TelegramID int64  `json:"telegram_id"`
	Type       string `json:"type"`
	Title      string `json:"title,omitempty"`
	Username   string `json:"username,omitempty"`
}

// Membership links a user and a chat.
type Membership struct {
	Entity
	UserID   int64     `json:"user_id"`
	ChatID   int64     `json:"chat_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Message is a stored chat message.
type Message struct {
	Entity
	TelegramID int64     `json:"telegram_id"`
	ChatID     int64     `json:"chat_id"`
	UserID     *int64    `json:"user_id,omitempty"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// Poll is a Telegram poll posted in a chat.
type Poll struct {
	Entity
	TelegramID     string   `json:"telegram_id"`
	ChatID         *int64   `json:"chat_id,omitempty"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	IsAnonymous    bool     `json:"is_anonymous"`
	AllowsMultiple bool     `json:"allows_multiple"`
}

// PollAnswer is a user's latest vote in a poll.
type PollAnswer struct {
	Entity
	PollID    int64 `json:"poll_id"`
	UserID    int64 `json:"user_id"`
	OptionIDs []int `json:"option_ids"`
}

// ElementResponse is the result of a combination returned to clients.
type ElementResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	IsNew bool   `json:"is_new"`
}

// NewElementResponse converts an element.
func NewElementResponse(e Element, isNew bool) ElementResponse {
	return ElementResponse{ID: e.ID, Name: e.Name, Emoji: e.Emoji, IsNew: isNew}
}
