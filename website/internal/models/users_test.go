package models

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestUserModel(t *testing.T) *UserModel {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	m := &UserModel{DB: db}
	if err := m.CreateTable(); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return m
}

func TestUserModelAuthenticate(t *testing.T) {
	m := newTestUserModel(t)

	if err := m.Insert("admin", "admin@example.com", "pa55word1", true); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	id, err := m.Authenticate("admin@example.com", "pa55word1")
	if err != nil || id == 0 {
		t.Fatalf("Authenticate = %d, %v", id, err)
	}

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "admin@example.com", "nope"},
		{"unknown email", "ghost@example.com", "pa55word1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Authenticate(tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}

	ok, err := m.Exists(id)
	if err != nil || !ok {
		t.Errorf("Exists(%d) = %v, %v", id, ok, err)
	}
	ok, err = m.Exists(id + 1)
	if err != nil || ok {
		t.Errorf("Exists(%d) = %v, %v", id+1, ok, err)
	}
}

func TestUserModelUnauthorisedUser(t *testing.T) {
	m := newTestUserModel(t)

	if err := m.Insert("viewer", "viewer@example.com", "pa55word1", false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := m.Authenticate("viewer@example.com", "pa55word1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if ok, _ := m.AdminExists(); ok {
		t.Error("AdminExists reported an admin")
	}
}

func TestUserModelDuplicateEmail(t *testing.T) {
	m := newTestUserModel(t)

	if err := m.Insert("a", "same@example.com", "pa55word1", true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert("b", "same@example.com", "pa55word2", false); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}
