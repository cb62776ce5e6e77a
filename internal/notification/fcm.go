package notification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"snapQuestAPI/internal/repository"
)

type FCMService struct {
	client *messaging.Client
	logger *zap.Logger
}

// NewFCMService initializes FCMService from base64 encoded service account
// JSON. If encodedCreds is empty it falls back to a local key file.
func NewFCMService(ctx context.Context, encodedCreds, localFilePath string, logger *zap.Logger) (*FCMService, error) {
	var opt option.ClientOption

	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		logger.Info("FCM Service: initializing from FCM_SERVICE_ACCOUNT_JSON")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FCM_SERVICE_ACCOUNT_JSON is not set", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		logger.Info("FCM Service: initializing from local file", zap.String("path", localFilePath))
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client, logger: logger}, nil
}

// SendPush sends n to each token one by one. Tokens FCM reports as
// unregistered are returned so the caller can forget them. An error is
// returned only when every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []repository.DeviceToken, n *Notification) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var (
		stale                      []string
		successCount, failureCount int
	)
	for _, t := range tokens {
		_, err := s.client.Send(ctx, buildMessage(n, t))
		switch {
		case err == nil:
			successCount++
		case messaging.IsUnregistered(err):
			stale = append(stale, t.Token)
			failureCount++
		default:
			s.logger.Warn("FCM: failed to send", zap.String("platform", t.Platform), zap.Error(err))
			failureCount++
		}
	}

	s.logger.Debug("FCM: push sent",
		zap.String("type", string(n.Type)),
		zap.Int("sent", successCount),
		zap.Int("failed", failureCount),
	)

	if successCount == 0 && failureCount > 0 {
		return stale, errors.New("all push notifications failed")
	}
	return stale, nil
}

// SendTopic broadcasts n to every device subscribed to topic.
func (s *FCMService) SendTopic(ctx context.Context, topic string, n *Notification) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to send to topic %s: %w", topic, err)
	}
	return nil
}

func buildMessage(n *Notification, t repository.DeviceToken) *messaging.Message {
	msg := &messaging.Message{
		Token: t.Token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	}

	switch t.Platform {
	case "ios":
		msg.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		}
	case "web":
		msg.Webpush = &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{Title: n.Title, Body: n.Body},
		}
	default:
		msg.Android = &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		}
	}
	return msg
}
