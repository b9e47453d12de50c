// Package push delivers task reminders as web push notifications.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/ralpholazo24/turi/internal/model"
)

// ErrExpired is returned when the push service reports the subscription
// gone (404 or 410).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is the contact sent to push services, a mailto: or https: URL.
	Subject string
	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
}

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, p Payload) error
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.Subject == "" {
		cfg.Subject = "mailto:noreply@turi.app"
	}
	return &Service{cfg: cfg}
}

// VAPIDPublicKey returns the key browsers need to subscribe.
func (s *Service) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.cfg.HTTPClient,
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             3600,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a new base64url P-256 key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
