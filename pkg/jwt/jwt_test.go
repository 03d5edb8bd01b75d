package jwt

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", "wes-io-chat", time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager(t)

	token, exp, err := m.GenerateAccessToken("u-1", "alice", []string{"user"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %v is not in the future", exp)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u-1" || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateRejects(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager("another-secret", "wes-io-chat", time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	foreign, _, err := other.GenerateAccessToken("u-1", "alice", nil)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	expiring := newTestManager(t)
	expiring.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := expiring.GenerateAccessToken("u-1", "alice", nil)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrInvalidToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", "x", time.Minute); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("err = %v, want ErrEmptySecret", err)
	}
}
