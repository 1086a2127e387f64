package domain

import "time"

// Craft payloads.

// ElementCreatePayload creates an element with a unique name.
type ElementCreatePayload struct {
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	IsBase bool   `json:"is_base"`
}

// ElementFetchPayload selects elements by ids or by name, never both.
type ElementFetchPayload struct {
	IDs  []int64 `json:"ids,omitempty"`
	Name string  `json:"name,omitempty"`
}

// ElementGeneratePayload asks the language model to combine two elements.
type ElementGeneratePayload struct {
	A Element `json:"a"`
	B Element `json:"b"`
}

// GeneratedElement is the language model's answer to a combination.
type GeneratedElement struct {
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Reason string `json:"reason"`
}

// RecipeCreatePayload stores a recipe. Inputs may arrive in any order.
type RecipeCreatePayload struct {
	ElementAID int64 `json:"element_a_id"`
	ElementBID int64 `json:"element_b_id"`
	ResultID   int64 `json:"result_id"`
}

// RecipeFetchPayload looks up the recipe for a pair in any order.
type RecipeFetchPayload struct {
	ElementAID int64 `json:"element_a_id"`
	ElementBID int64 `json:"element_b_id"`
}

// ProgressCheckPayload asks which of ElementIDs the user has unlocked.
type ProgressCheckPayload struct {
	UserID       int64   `json:"user_id"`
	ChatInstance string  `json:"chat_instance"`
	ElementIDs   []int64 `json:"element_ids"`
}

// ProgressPayload identifies one progress fact.
type ProgressPayload struct {
	UserID       int64  `json:"user_id"`
	ChatInstance string `json:"chat_instance"`
	ElementID    int64  `json:"element_id"`
}

// ProgressListPayload lists every element a user has unlocked.
type ProgressListPayload struct {
	UserID       int64  `json:"user_id"`
	ChatInstance string `json:"chat_instance"`
}

// ElementDiscoveredPayload is broadcast after a new element is crafted.
type ElementDiscoveredPayload struct {
	Element      Element  `json:"element"`
	Inputs       [2]int64 `json:"inputs"`
	UserID       int64    `json:"user_id"`
	ChatInstance string   `json:"chat_instance"`
}

// Telegram payloads. Phase-two payloads reference users and chats by
// Telegram id since the upserts of phase one return nothing to the caller.

// UserUpsertPayload creates or refreshes a user by Telegram id.
type UserUpsertPayload struct {
	TelegramID   int64  `json:"telegram_id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsBot        bool   `json:"is_bot"`
}

// UserFetchPayload selects a user by id or by Telegram id, never both.
type UserFetchPayload struct {
	ID         int64 `json:"id,omitempty"`
	TelegramID int64 `json:"telegram_id,omitempty"`
}

// ChatUpsertPayload creates or refreshes a chat by Telegram id.
type ChatUpsertPayload struct {
	TelegramID int64  `json:"telegram_id"`
	Type       string `json:"type"`
	Title      string `json:"title,omitempty"`
	Username   string `json:"username,omitempty"`
}

// ChatFetchPayload selects a chat by id or by Telegram id, never both.
type ChatFetchPayload struct {
	ID         int64 `json:"id,omitempty"`
	TelegramID int64 `json:"telegram_id,omitempty"`
}

// MembershipPayload identifies a membership by Telegram ids.
type MembershipPayload struct {
	UserTelegramID int64     `json:"user_telegram_id"`
	ChatTelegramID int64     `json:"chat_telegram_id"`
	JoinedAt       time.Time `json:"joined_at,omitempty"`
}

// MessageSavePayload stores a chat message. UserTelegramID is zero for
// channel posts.
type MessageSavePayload struct {
	TelegramID     int64     `json:"telegram_id"`
	ChatTelegramID int64     `json:"chat_telegram_id"`
	UserTelegramID int64     `json:"user_telegram_id,omitempty"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sent_at"`
}

// MessagePurgePayload deletes messages sent before Before.
type MessagePurgePayload struct {
	Before time.Time `json:"before"`
}

// PollSavePayload stores a poll and its options.
type PollSavePayload struct {
	TelegramID     string   `json:"telegram_id"`
	ChatTelegramID int64    `json:"chat_telegram_id,omitempty"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	IsAnonymous    bool     `json:"is_anonymous"`
	AllowsMultiple bool     `json:"allows_multiple"`
}

// PollAnswerPayload records a user's vote. An empty OptionIDs retracts it.
type PollAnswerPayload struct {
	PollTelegramID string `json:"poll_telegram_id"`
	UserTelegramID int64  `json:"user_telegram_id"`
	OptionIDs      []int  `json:"option_ids"`
}
