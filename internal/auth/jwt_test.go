package auth

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh
// secret. Only safe to call from test code.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	os.Setenv("EMS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

func TestValidateJWTSecret(t *testing.T) {
	t.Run("valid secret from env", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("EMS_JWT_SECRET", "exactly-32-char-secret-for-test!!")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error: %v", err)
		}
	})

	t.Run("production mode requires secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("EMS_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "")
		t.Setenv("GIN_MODE", "release")
		if err := ValidateJWTSecret(); err == nil {
			t.Error("ValidateJWTSecret() expected error in production mode without secret, got nil")
		}
	})

	t.Run("dev mode generates random secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("EMS_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "true")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error in dev mode: %v", err)
		}
		if GetJWTSecret() == "" {
			t.Error("GetJWTSecret() returned empty string after dev mode init")
		}
	})
}

func TestGenerateAndValidateJWT(t *testing.T) {
	resetJWTSecret()
	t.Setenv("EMS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	token, err := GenerateJWT("user-1", "ada@example.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Email = %s, want ada@example.com", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %s, want admin", claims.Role)
	}
	if claims.Issuer != "ems-backend" {
		t.Errorf("Issuer = %s, want ems-backend", claims.Issuer)
	}
}

func TestValidateJWT_Expired(t *testing.T) {
	resetJWTSecret()
	t.Setenv("EMS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	token, err := GenerateJWT("user-1", "ada@example.com", "admin", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ValidateJWT(token); err == nil {
		t.Error("ValidateJWT accepted an expired token")
	}
}

func TestValidateJWT_TamperedToken(t *testing.T) {
	resetJWTSecret()
	t.Setenv("EMS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	token, err := GenerateJWT("user-1", "ada@example.com", "employee", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := ValidateJWT(tampered); err == nil {
		t.Error("ValidateJWT accepted a tampered token")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	resetJWTSecret()
	t.Setenv("EMS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	if _, err := ValidateJWT("not.a.token"); err == nil {
		t.Error("ValidateJWT accepted garbage input")
	}
}
