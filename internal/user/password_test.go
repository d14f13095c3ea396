package user

import (
	"errors"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"all three classes", "Passw0rd!", nil},
		{"symbol is space", "pass word1", nil},
		{"unicode letter", "héllo1!", nil},
		{"missing digit", "Password!", ErrWeakPassword},
		{"missing letter", "12345678!", ErrWeakPassword},
		{"missing symbol", "Password1", ErrWeakPassword},
		{"empty", "", ErrWeakPassword},
		{"digits only", "1234", ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Passw0rd!")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "Passw0rd!" {
		t.Fatal("hash should not equal plaintext")
	}

	u := &User{PasswordHash: hash}
	if !CheckPassword(u, "Passw0rd!") {
		t.Error("expected correct password to verify")
	}
	if CheckPassword(u, "wrong") {
		t.Error("expected wrong password to fail")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleManager, RoleMember, RoleUnassigned} {
		if !ValidRole(r) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if ValidRole("superuser") {
		t.Error("expected unknown role to be invalid")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@X.COM "); got != "alice@x.com" {
		t.Errorf("expected alice@x.com, got %q", got)
	}
}
