// Package telegram holds the subset of the Telegram Bot API the bot
// consumes: webhook updates and WebApp init data.
package telegram

import "time"

// Update is one incoming webhook update. At most one of the optional
// fields is set.
type Update struct {
	UpdateID      int64              `json:"update_id"`
	Message       *Message           `json:"message,omitempty"`
	EditedMessage *Message           `json:"edited_message,omitempty"`
	ChatMember    *ChatMemberUpdated `json:"chat_member,omitempty"`
	MyChatMember  *ChatMemberUpdated `json:"my_chat_member,omitempty"`
	Poll          *Poll              `json:"poll,omitempty"`
	PollAnswer    *PollAnswer        `json:"poll_answer,omitempty"`
}

// User is a Telegram user or bot.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat is a private chat, group, supergroup or channel.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// Message is a chat message.
type Message struct {
	MessageID      int64  `json:"message_id"`
	From           *User  `json:"from,omitempty"`
	Chat           Chat   `json:"chat"`
	Date           int64  `json:"date"`
	Text           string `json:"text,omitempty"`
	Caption        string `json:"caption,omitempty"`
	NewChatMembers []User `json:"new_chat_members,omitempty"`
	LeftChatMember *User  `json:"left_chat_member,omitempty"`
	Poll           *Poll  `json:"poll,omitempty"`
}

// SentAt converts the unix Date.
func (m *Message) SentAt() time.Time {
	return time.Unix(m.Date, 0).UTC()
}

// Body returns the text or, for media messages, the caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Chat member statuses.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// ChatMember is the state of one user in a chat.
type ChatMember struct {
	Status   string `json:"status"`
	User     User   `json:"user"`
	IsMember bool   `json:"is_member,omitempty"`
}

// Present reports whether the member is in the chat.
func (m ChatMember) Present() bool {
	switch m.Status {
	case StatusLeft, StatusKicked:
		return false
	case StatusRestricted:
		return m.IsMember
	}
	return true
}

// ChatMemberUpdated describes a membership change.
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	Date          int64      `json:"date"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// PollOption is one answer option.
type PollOption struct {
	Text       string `json:"text"`
	VoterCount int    `json:"voter_count"`
}

// Poll is a poll and its current state.
type Poll struct {
	ID                    string       `json:"id"`
	Question              string       `json:"question"`
	Options               []PollOption `json:"options"`
	IsAnonymous           bool         `json:"is_anonymous"`
	AllowsMultipleAnswers bool         `json:"allows_multiple_answers"`
}

// OptionTexts returns the option labels in order.
func (p *Poll) OptionTexts() []string {
	out := make([]string, len(p.Options))
	for i, o := range p.Options {
		out[i] = o.Text
	}
	return out
}

// PollAnswer is a user's vote in a non-anonymous poll. An empty
// OptionIDs means the vote was retracted.
type PollAnswer struct {
	PollID    string `json:"poll_id"`
	User      *User  `json:"user,omitempty"`
	OptionIDs []int  `json:"option_ids"`
}
