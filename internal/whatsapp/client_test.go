package whatsapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadconsole_backend/platform/logger"
)

type gatewayConfig struct {
	url string
	key string
}

func (c gatewayConfig) GetWhatsAppURL() string        { return c.url }
func (c gatewayConfig) GetWhatsAppKey() string        { return c.key }
func (c gatewayConfig) GetWhatsAppDeviceID() string   { return "device-7" }
func (c gatewayConfig) GetPhoneDefaultRegion() string { return "IN" }

func TestSendMessagePostsNormalizedNumber(t *testing.T) {
	var got gowaRequest
	var auth, device string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(gatewayConfig{url: srv.URL + "/", key: "user:pass"}, logger.NewDiscard())
	if err := client.SendMessage(context.Background(), "98765 43210", "Your counselling slot is confirmed"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.Phone != "919876543210" {
		t.Fatalf("expected normalized phone, got %q", got.Phone)
	}
	if got.Message != "Your counselling slot is confirmed" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass")); auth != want {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if device != "device-7" {
		t.Fatalf("unexpected device header %q", device)
	}
}

func TestSendMessageSurfacesGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(gatewayConfig{url: srv.URL}, logger.NewDiscard())
	err := client.SendMessage(context.Background(), "+919876543210", "hello")
	if err == nil || !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "device offline") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestNewClientDisabledWithoutURL(t *testing.T) {
	if NewClient(gatewayConfig{}, logger.NewDiscard()) != nil {
		t.Fatal("expected nil client without gateway url")
	}
}

func TestFormatAuthHeaderKeepsPreformattedValue(t *testing.T) {
	if got := formatAuthHeader("Basic abc"); got != "Basic abc" {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestMaskPhone(t *testing.T) {
	if got := maskPhone("919876543210"); got != "********3210" {
		t.Fatalf("unexpected mask %q", got)
	}
}
