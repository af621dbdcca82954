package store

import (
	"testing"

	"github.com/healixhq/healix/internal/database"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("user-1", "alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID != "user-1" {
		t.Errorf("id = %q, want %q", u.ID, "user-1")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.IsAdmin {
		t.Error("new user must not be admin")
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	us.Create("user-1", "alice@example.com", "Alice", "hash")
	_, err := us.Create("user-2", "alice@example.com", "Other Alice", "hash")
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}
	if !isUniqueViolation(err) {
		t.Errorf("err = %v, want unique violation", err)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByEmail("missing@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent email")
	}
}

func TestUserGetPasswordHash(t *testing.T) {
	us := setupUserTestDB(t)

	us.Create("user-1", "alice@example.com", "Alice", "bcrypt-hash")

	hash, err := us.GetPasswordHash("alice@example.com")
	if err != nil {
		t.Fatalf("get password hash: %v", err)
	}
	if hash != "bcrypt-hash" {
		t.Errorf("hash = %q, want %q", hash, "bcrypt-hash")
	}

	hash, err = us.GetPasswordHash("missing@example.com")
	if err != nil {
		t.Fatalf("get password hash: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty for unknown email", hash)
	}
}

func TestUserSetAdmin(t *testing.T) {
	us := setupUserTestDB(t)

	us.Create("user-1", "alice@example.com", "Alice", "hash")
	if err := us.SetAdmin("user-1", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	u, _ := us.GetByID("user-1")
	if !u.IsAdmin {
		t.Error("expected admin flag set")
	}
}
