package keyring

import (
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetConnectionString(t *testing.T) {
	gokeyring.MockInit()

	testConnStr := "postgres://testuser@localhost:5432/testdb?sslmode=disable"

	if err := SetConnectionString(testConnStr); err != nil {
		t.Fatalf("SetConnectionString() failed: %v", err)
	}

	retrieved, err := GetConnectionString()
	if err != nil {
		t.Fatalf("GetConnectionString() failed: %v", err)
	}

	if retrieved != testConnStr {
		t.Errorf("GetConnectionString() = %q, want %q", retrieved, testConnStr)
	}
}

func TestSetConnectionStringEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetConnectionString(""); err == nil {
		t.Error("SetConnectionString(\"\") should return an error")
	}
}

func TestGetConnectionStringNotFound(t *testing.T) {
	gokeyring.MockInit()

	_ = DeleteConnectionString()

	_, err := GetConnectionString()
	if err != ErrNotFound {
		t.Errorf("GetConnectionString() error = %v, want %v", err, ErrNotFound)
	}
}

func TestJWTSecretRoundTrip(t *testing.T) {
	gokeyring.MockInit()

	if err := SetJWTSecret("s3cr3t-signing-key"); err != nil {
		t.Fatalf("SetJWTSecret() failed: %v", err)
	}

	secret, err := GetJWTSecret()
	if err != nil {
		t.Fatalf("GetJWTSecret() failed: %v", err)
	}
	if secret != "s3cr3t-signing-key" {
		t.Errorf("GetJWTSecret() = %q", secret)
	}

	if err := DeleteJWTSecret(); err != nil {
		t.Fatalf("DeleteJWTSecret() failed: %v", err)
	}
	if err := DeleteJWTSecret(); err != ErrNotFound {
		t.Errorf("second DeleteJWTSecret() error = %v, want %v", err, ErrNotFound)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("IsAvailable() = false with the mock keyring")
	}
}
