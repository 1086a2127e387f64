package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/telegram"
	"craftbot.io/craftbot/internal/uow"
)

// IngestUpdateUseCase stores one Telegram update.
//
// Each update runs in its own scope. Users and chats are upserted first
// because memberships, messages and votes reference them.
type IngestUpdateUseCase struct {
	bus *bus.Bus
	uow *uow.UnitOfWork
}

// NewIngestUpdateUseCase creates a new IngestUpdateUseCase.
func NewIngestUpdateUseCase(b *bus.Bus, u *uow.UnitOfWork) *IngestUpdateUseCase {
	return &IngestUpdateUseCase{bus: b, uow: u}
}

// Execute ingests upd. Updates of kinds the bot does not track are ignored.
func (uc *IngestUpdateUseCase) Execute(ctx context.Context, upd telegram.Update) error {
	var run func(ctx context.Context) error
	switch {
	case upd.Message != nil:
		run = func(ctx context.Context) error { return uc.message(ctx, upd.Message, true) }
	case upd.EditedMessage != nil:
		run = func(ctx context.Context) error { return uc.message(ctx, upd.EditedMessage, false) }
	case upd.ChatMember != nil:
		run = func(ctx context.Context) error { return uc.memberChange(ctx, upd.ChatMember) }
	case upd.MyChatMember != nil:
		run = func(ctx context.Context) error { return uc.memberChange(ctx, upd.MyChatMember) }
	case upd.Poll != nil:
		run = func(ctx context.Context) error { return uc.poll(ctx, upd.Poll, nil) }
	case upd.PollAnswer != nil:
		run = func(ctx context.Context) error { return uc.pollAnswer(ctx, upd.PollAnswer) }
	default:
		logger.Ctx(ctx).Debug("Ignoring update", zap.Int64("update_id", upd.UpdateID))
		return nil
	}

	if err := uc.uow.Start(ctx, run); err != nil {
		return fmt.Errorf("ingest update %d: %w", upd.UpdateID, err)
	}
	return nil
}

func userEvent(u telegram.User) bus.Event {
	return bus.NewEvent(domain.TopicUserUpsert, bus.Record(domain.UserUpsertPayload{
		TelegramID:   u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		IsBot:        u.IsBot,
	}))
}

func chatEvent(c telegram.Chat) bus.Event {
	return bus.NewEvent(domain.TopicChatUpsert, bus.Record(domain.ChatUpsertPayload{
		TelegramID: c.ID,
		Type:       c.Type,
		Title:      c.Title,
		Username:   c.Username,
	}))
}

func joinEvent(userID, chatID int64, at time.Time) bus.Event {
	return bus.NewEvent(domain.TopicMembershipUpsert, bus.Record(domain.MembershipPayload{
		UserTelegramID: userID,
		ChatTelegramID: chatID,
		JoinedAt:       at,
	}))
}

func leaveEvent(userID, chatID int64) bus.Event {
	return bus.NewEvent(domain.TopicMembershipRemove, bus.Record(domain.MembershipPayload{
		UserTelegramID: userID,
		ChatTelegramID: chatID,
	}))
}

// tolerate drops the error kinds a redelivered update produces.
func tolerate(err error, kinds ...error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return nil
		}
	}
	return err
}

// message handles new and edited messages. Only new messages are stored;
// an edit refreshes the sender and chat.
func (uc *IngestUpdateUseCase) message(ctx context.Context, m *telegram.Message, store bool) error {
	sentAt := m.SentAt()

	identities := []bus.Event{chatEvent(m.Chat)}
	if m.From != nil {
		identities = append(identities, userEvent(*m.From))
	}
	for _, u := range m.NewChatMembers {
		identities = append(identities, userEvent(u))
	}
	if m.LeftChatMember != nil {
		identities = append(identities, userEvent(*m.LeftChatMember))
	}
	if err := uc.bus.PublishAndWait(ctx, identities...); err != nil {
		return fmt.Errorf("upsert identities: %w", err)
	}
	if !store {
		return nil
	}

	var links []bus.Event
	save := domain.MessageSavePayload{
		TelegramID:     m.MessageID,
		ChatTelegramID: m.Chat.ID,
		Text:           m.Body(),
		SentAt:         sentAt,
	}
	if m.From != nil {
		save.UserTelegramID = m.From.ID
		links = append(links, joinEvent(m.From.ID, m.Chat.ID, sentAt))
	}
	for _, u := range m.NewChatMembers {
		links = append(links, joinEvent(u.ID, m.Chat.ID, sentAt))
	}
	if err := uc.bus.PublishAndWait(ctx, links...); err != nil {
		return fmt.Errorf("upsert memberships: %w", err)
	}
	// Only the message insert is tolerated on redelivery, in its own wait so
	// a duplicate cannot mask another handler's failure.
	err := uc.bus.PublishAndWait(ctx, bus.NewEvent(domain.TopicMessageSave, bus.Record(save)))
	if err = tolerate(err, apperrors.ErrEntityAlreadyExists); err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	if m.LeftChatMember != nil {
		if err := uc.bus.PublishAndWait(ctx, leaveEvent(m.LeftChatMember.ID, m.Chat.ID)); tolerate(err, apperrors.ErrEntityNotFound) != nil {
			return fmt.Errorf("remove membership: %w", err)
		}
	}
	if m.Poll != nil {
		chatID := m.Chat.ID
		return uc.poll(ctx, m.Poll, &chatID)
	}
	return nil
}

func (uc *IngestUpdateUseCase) memberChange(ctx context.Context, ch *telegram.ChatMemberUpdated) error {
	member := ch.NewChatMember.User
	if err := uc.bus.PublishAndWait(ctx, userEvent(member), chatEvent(ch.Chat)); err != nil {
		return fmt.Errorf("upsert identities: %w", err)
	}

	if ch.NewChatMember.Present() {
		at := time.Unix(ch.Date, 0).UTC()
		if err := uc.bus.PublishAndWait(ctx, joinEvent(member.ID, ch.Chat.ID, at)); err != nil {
			return fmt.Errorf("upsert membership: %w", err)
		}
		return nil
	}
	err := uc.bus.PublishAndWait(ctx, leaveEvent(member.ID, ch.Chat.ID))
	if err = tolerate(err, apperrors.ErrEntityNotFound); err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

func (uc *IngestUpdateUseCase) poll(ctx context.Context, p *telegram.Poll, chatID *int64) error {
	save := domain.PollSavePayload{
		TelegramID:     p.ID,
		Question:       p.Question,
		Options:        p.OptionTexts(),
		IsAnonymous:    p.IsAnonymous,
		AllowsMultiple: p.AllowsMultipleAnswers,
	}
	if chatID != nil {
		save.ChatTelegramID = *chatID
	}
	if err := uc.bus.PublishAndWait(ctx, bus.NewEvent(domain.TopicPollSave, bus.Record(save))); err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	return nil
}

func (uc *IngestUpdateUseCase) pollAnswer(ctx context.Context, a *telegram.PollAnswer) error {
	if a.User == nil {
		return nil
	}
	if err := uc.bus.PublishAndWait(ctx, userEvent(*a.User)); err != nil {
		return fmt.Errorf("upsert voter: %w", err)
	}
	err := uc.bus.PublishAndWait(ctx, bus.NewEvent(domain.TopicPollAnswer, bus.Record(domain.PollAnswerPayload{
		PollTelegramID: a.PollID,
		UserTelegramID: a.User.ID,
		OptionIDs:      a.OptionIDs,
	})))
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}
