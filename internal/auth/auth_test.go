package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHashPassword(t *testing.T) {
	// sha512("password")
	want := "b109f3bbbc244eb82441917ed06d618b9008dd09b3befd1b5e07394c706a8bb980b1d7785e5976ec049b46df5f1326af5a2ea6d103fd07c95385ffab0cacbc86"

	if got := HashPassword("password"); got != want {
		t.Errorf("HashPassword = %q, want %q", got, want)
	}
}

func TestClient_RequestToken(t *testing.T) {
	var gotUser, gotPass string
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != TokenPath {
			t.Errorf("request = %s %s, want POST %s", r.Method, r.URL.Path, TokenPath)
		}

		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Write([]byte("access_token=abc123&user_id=1&device_id=7&expires=31536000"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, WithDevice("exporter-test", "hw-1"))

	token, err := client.RequestToken(context.Background(), Credentials{Username: "admin", Password: "password"})
	if err != nil {
		t.Fatalf("RequestToken failed: %v", err)
	}

	if token.AccessToken != "abc123" {
		t.Errorf("AccessToken = %q, want abc123", token.AccessToken)
	}
	if token.DeviceID != 7 || token.UserID != 1 {
		t.Errorf("UserID/DeviceID = %d/%d, want 1/7", token.UserID, token.DeviceID)
	}
	if token.ExpiresAt.IsZero() {
		t.Error("ExpiresAt should be set")
	}

	if gotUser != "admin" {
		t.Errorf("basic auth user = %q, want admin", gotUser)
	}
	if gotPass != HashPassword("password") {
		t.Errorf("basic auth password is not the SHA-512 digest")
	}

	wantForm := map[string]string{
		"device_name":        "exporter-test",
		"device_hardware_id": "hw-1",
		"device_os":          deviceOS,
		"device_type":        deviceType,
		"device_app":         deviceApp,
	}
	for k, want := range wantForm {
		if gotForm[k] != want {
			t.Errorf("form %s = %q, want %q", k, gotForm[k], want)
		}
	}
}

func TestClient_RequestToken_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	_, err := client.RequestToken(context.Background(), Credentials{Username: "admin", Password: "wrong"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("RequestToken = %v, want ErrUnauthorized", err)
	}
}

func TestClient_RequestToken_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	_, err := client.RequestToken(context.Background(), Credentials{Username: "admin", Password: "pw"})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("RequestToken = %v, want status 500 error", err)
	}
}

func TestClient_RequestToken_MissingCredentials(t *testing.T) {
	client := NewClient("http://homee.local:7681", nil)

	if _, err := client.RequestToken(context.Background(), Credentials{Username: "admin"}); err == nil {
		t.Error("expected error for missing password")
	}
}

func TestClient_HardwareIDGenerated(t *testing.T) {
	a := NewClient("http://homee.local:7681", nil)
	b := NewClient("http://homee.local:7681", nil)

	if a.HardwareID() == "" || a.HardwareID() == b.HardwareID() {
		t.Errorf("hardware IDs %q and %q should be unique and non-empty", a.HardwareID(), b.HardwareID())
	}
	if strings.Contains(a.HardwareID(), "-") {
		t.Errorf("hardware ID %q should not contain dashes", a.HardwareID())
	}
}

func TestParseToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		body    string
		want    string
		expires time.Time
		wantErr bool
	}{
		{"full", "access_token=tok&expires=60\n", "tok", now.Add(time.Minute), false},
		{"token only", "access_token=tok", "tok", time.Time{}, false},
		{"missing token", "user_id=1", "", time.Time{}, true},
		{"empty", "", "", time.Time{}, true},
		{"bad encoding", "access_token=%zz", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ParseToken(tt.body, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToken error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if token.AccessToken != tt.want {
				t.Errorf("AccessToken = %q, want %q", token.AccessToken, tt.want)
			}
			if !token.ExpiresAt.Equal(tt.expires) {
				t.Errorf("ExpiresAt = %v, want %v", token.ExpiresAt, tt.expires)
			}
		})
	}
}

func TestConnectionURL(t *testing.T) {
	tests := []struct {
		base    string
		token   string
		want    string
		wantErr bool
	}{
		{"http://homee.local:7681", "tok", "ws://homee.local:7681/connection?access_token=tok", false},
		{"https://homee.local", "tok", "wss://homee.local/connection?access_token=tok", false},
		{"ws://homee.local:7681/", "", "ws://homee.local:7681/connection", false},
		{"ws://homee.local:7681/custom", "a b", "ws://homee.local:7681/custom?access_token=a+b", false},
		{"ftp://homee.local", "", "", true},
		{"http://", "", "", true},
	}

	for _, tt := range tests {
		got, err := ConnectionURL(tt.base, tt.token)
		if (err != nil) != tt.wantErr {
			t.Errorf("ConnectionURL(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ConnectionURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestTokenURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://homee.local:7681", "http://homee.local:7681/access_token"},
		{"ws://homee.local:7681/connection?access_token=old", "http://homee.local:7681/access_token"},
		{"wss://homee.local", "https://homee.local/access_token"},
	}

	for _, tt := range tests {
		got, err := TokenURL(tt.base)
		if err != nil {
			t.Errorf("TokenURL(%q) failed: %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("TokenURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
