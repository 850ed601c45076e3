package auth

import (
	"testing"

	"github.com/policykeeper/policykeeper/internal/models"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("Expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("Expected wrong password to fail")
	}
}

func TestVerifyAdmin(t *testing.T) {
	tests := []struct {
		name     string
		settings models.Settings
		user     string
		pass     string
		want     bool
	}{
		{"Stored credentials", models.Settings{AdminUser: "boss", AdminPass: "pw"}, "boss", "pw", true},
		{"Stored credentials wrong pass", models.Settings{AdminUser: "boss", AdminPass: "pw"}, "boss", "x", false},
		{"Fallback when unset", models.Settings{}, "admin", "admin123", true},
		{"Fallback rejected after settings written", models.Settings{AdminUser: "boss", AdminPass: "pw"}, "admin", "admin123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyAdmin(tt.settings, "admin", "admin123", tt.user, tt.pass)
			if got != tt.want {
				t.Errorf("VerifyAdmin=%v want %v", got, tt.want)
			}
		})
	}
}
