package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ralpholazo24/turi/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// browserSubscription returns a subscription with real client keys so the
// payload can be encrypted.
func browserSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return &model.PushSubscription{
		ID:        "sub-1",
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestServiceSend(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	tests := []struct {
		name        string
		status      int
		wantErr     bool
		wantExpired bool
	}{
		{"created", http.StatusCreated, false, false},
		{"gone", http.StatusGone, true, true},
		{"not found", http.StatusNotFound, true, true},
		{"server error", http.StatusInternalServerError, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTTL string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTTL = r.Header.Get("TTL")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			svc := NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv})
			err := svc.Send(context.Background(), browserSubscription(t, srv.URL), Payload{Title: "Time for Bins", Body: "Ana"})

			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrExpired); got != tt.wantExpired {
				t.Errorf("errors.Is(err, ErrExpired) = %v, want %v", got, tt.wantExpired)
			}
			if gotTTL != "3600" {
				t.Errorf("TTL header = %q, want 3600", gotTTL)
			}
		})
	}
}

func TestVAPIDPublicKey(t *testing.T) {
	svc := NewService(Config{VAPIDPublicKey: "pub"})
	if got := svc.VAPIDPublicKey(); got != "pub" {
		t.Errorf("VAPIDPublicKey() = %q, want pub", got)
	}
}
