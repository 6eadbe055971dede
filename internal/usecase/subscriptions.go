package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"brightside/internal/domain"
	"brightside/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrUnknownToken = errors.New("unknown unsubscribe token")
)

// SubscribeOutcome описывает результат подписки.
type SubscribeOutcome int

const (
	Subscribed SubscribeOutcome = iota
	Reactivated
	AlreadySubscribed
)

// SubscriberStorage - хранилище подписчиков.
type SubscriberStorage interface {
	GetSubscriber(ctx context.Context, email string) (domain.Subscriber, error)
	SaveSubscriber(ctx context.Context, sub domain.Subscriber) error
	DeactivateSubscriber(ctx context.Context, token string) error
}

type SubscriptionUseCase struct {
	storage SubscriberStorage
	log     *slog.Logger
	now     func() time.Time
}

// NewSubscriptionUseCase создает сценарий подписки поверх хранилища подписчиков.
func NewSubscriptionUseCase(s SubscriberStorage, log *slog.Logger) *SubscriptionUseCase {
	return &SubscriptionUseCase{
		storage: s,
		log:     log.With(slog.String("component", "subscriptions")),
		now:     time.Now,
	}
}

// Subscribe подписывает адрес или повторно активирует отписавшегося подписчика.
func (uc *SubscriptionUseCase) Subscribe(ctx context.Context, email string) (SubscribeOutcome, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || !strings.Contains(addr.Address, "@") {
		return 0, ErrInvalidEmail
	}
	normalized := strings.ToLower(addr.Address)

	existing, err := uc.storage.GetSubscriber(ctx, normalized)
	switch {
	case err == nil && existing.Active:
		return AlreadySubscribed, nil
	case err == nil:
		existing.Active = true
		if err := uc.storage.SaveSubscriber(ctx, existing); err != nil {
			return 0, fmt.Errorf("failed to reactivate subscriber: %w", err)
		}
		uc.log.Info("Subscriber reactivated")
		return Reactivated, nil
	case !errors.Is(err, storage.ErrNotFound):
		return 0, fmt.Errorf("failed to look up subscriber: %w", err)
	}

	sub := domain.Subscriber{
		Email:        normalized,
		Token:        uuid.NewString(),
		Active:       true,
		SubscribedAt: uc.now().UTC(),
	}
	if err := uc.storage.SaveSubscriber(ctx, sub); err != nil {
		return 0, fmt.Errorf("failed to save subscriber: %w", err)
	}
	uc.log.Info("Subscriber added")
	return Subscribed, nil
}

// Unsubscribe деактивирует подписчика по токену из письма.
func (uc *SubscriptionUseCase) Unsubscribe(ctx context.Context, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return ErrUnknownToken
	}
	err := uc.storage.DeactivateSubscriber(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUnknownToken
	}
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}
