package push

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/rudhramentertainment/RBackend/internal/domain"
)

// fcmBatchLimit is the multicast ceiling of the FCM API.
const fcmBatchLimit = 500

type multicaster interface {
	SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type FCMSender struct {
	client   multicaster
	classify func(error) Outcome
}

func NewFCMSender(ctx context.Context, credentialsFile, projectID string) (*FCMSender, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FCMSender{client: client, classify: ClassifyFCM}, nil
}

// ClassifyFCM maps an FCM per-token error to an outcome. Unregistered,
// malformed and foreign-project tokens are permanent.
func ClassifyFCM(err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case messaging.IsUnregistered(err), messaging.IsInvalidArgument(err), messaging.IsSenderIDMismatch(err):
		return Invalid
	default:
		return Transient
	}
}

func buildMulticast(tokens []string, n domain.Notification) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		},
	}
}

func (s *FCMSender) Send(ctx context.Context, tokens []string, n domain.Notification) ([]TokenResult, error) {
	results := make([]TokenResult, 0, len(tokens))
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := start + fcmBatchLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, buildMulticast(chunk, n))
		if err != nil {
			results = append(results, AllTransient(tokens[start:], err)...)
			return results, err
		}
		for i, r := range resp.Responses {
			if i >= len(chunk) {
				break
			}
			res := TokenResult{Token: chunk[i], Outcome: Delivered}
			if !r.Success {
				res.Outcome = s.classify(r.Error)
				res.Err = r.Error
			}
			results = append(results, res)
		}
	}
	return results, nil
}
