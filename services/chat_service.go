//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"kutter/domain"
	"kutter/moderation"
	"kutter/repositories"
)

type IChatService interface {
	PostMessage(ctx context.Context, author domain.Identity, body string) (domain.Message, error)
	DeleteMessage(ctx context.Context, requester domain.Identity, id domain.MessageID) error
	GetMessages(ctx context.Context) ([]domain.Message, error)
}

type ChatService struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	moderator  *moderation.Moderator
}

// NewChatService builds the service; a nil moderator disables censoring.
func NewChatService(log *slog.Logger, repository repositories.IMessageRepository, moderator *moderation.Moderator) *ChatService {
	return &ChatService{log: log, repository: repository, moderator: moderator}
}

func (s *ChatService) PostMessage(ctx context.Context, author domain.Identity, body string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if s.moderator != nil {
		censored, words := s.moderator.Censor(body)
		if len(words) > 0 {
			s.log.Debug("Message censored", "user_id", author.UserID, "words", len(words))
		}
		body = censored
	}
	return s.repository.Create(author, body)
}

func (s *ChatService) DeleteMessage(ctx context.Context, requester domain.Identity, id domain.MessageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.repository.Delete(requester, id)
}

func (s *ChatService) GetMessages(ctx context.Context) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.repository.List()
}
