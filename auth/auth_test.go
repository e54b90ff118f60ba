package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"Jane Doe", "test@example.com", "ComplexPass123!"}, false},
		{"Missing full name", RegisterRequest{"", "test@example.com", "ComplexPass123!"}, true},
		{"Invalid email", RegisterRequest{"Jane Doe", "notanemail", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"Jane Doe", "test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"Jane Doe", "test@example.com", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"Jane Doe", "test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"Jane Doe", "test@example.com", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"Jane Doe", "test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test_secret_key_for_unit_tests", time.Hour)

	token, err := manager.Generate("user-123", "jane@example.com")
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal("jane@example.com", claims.Email)

	// A token signed with another secret must be rejected
	other := NewTokenManager("a_completely_different_secret", time.Hour)
	_, err = other.Validate(token)
	req.Error(err)
}

func TestTokenExpiry(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test_secret_key_for_unit_tests", -time.Minute)

	token, err := manager.Generate("user-123", "jane@example.com")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

// BenchmarkHashPassword permet de mesurer l'impact CPU/RAM (Crucial pour K8s)
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
