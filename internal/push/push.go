package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/chorechart/internal/model"
)

// ErrExpired means the browser dropped the subscription (404 or 410).
var ErrExpired = errors.New("push subscription expired")

// defaultTTL is how long the push service holds an undelivered message, in seconds.
const defaultTTL = 24 * 60 * 60

// StatusError is a non-success response from a push service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service returned %d", e.Code)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Service signs and encrypts notifications with one VAPID identity.
type Service struct {
	opts webpush.Options
}

// NewService takes base64url VAPID keys and the mailto: or https: contact
// that push services see in the JWT. webpush adds the mailto: scheme itself.
func NewService(publicKey, privateKey, subscriber string) *Service {
	return &Service{opts: webpush.Options{
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		Subscriber:      strings.TrimPrefix(subscriber, "mailto:"),
		TTL:             defaultTTL,
		Urgency:         webpush.UrgencyNormal,
	}}
}

// VAPIDPublicKey is the applicationServerKey browsers subscribe with.
func (s *Service) VAPIDPublicKey() string {
	return s.opts.VAPIDPublicKey
}

func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}
	opts := s.opts
	resp, err := webpush.SendNotificationWithContext(ctx, body, target, &opts)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url P-256 key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
