package models

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type UserModelInterface interface {
	Insert(name, email, password string, admin bool) error
	Authenticate(email, password string) (int, error)
	Exists(id int) (bool, error)
	AdminExists() (bool, error)
}

type User struct {
	ID             int
	Name           string
	Email          string
	HashedPassword []byte
	Authorised     bool
	Admin          bool
	Created        time.Time
}

type UserModel struct {
	DB *sql.DB
}

// CreateTable creates the users table if it does not exist yet.
func (m *UserModel) CreateTable() error {
	_, err := m.DB.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password CHAR(60) NOT NULL,
			authorised INTEGER DEFAULT 0,
			admin INTEGER DEFAULT 0,
			created DATETIME NOT NULL
		);
	`)
	return err
}

func (m *UserModel) Insert(name, email, password string, admin bool) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}

	flag := 0
	if admin {
		flag = 1
	}
	_, err = m.DB.Exec(`INSERT INTO users (username, email, password, authorised, admin, created)
		VALUES (?, ?, ?, ?, ?, ?)`,
		name, email, string(hashedPassword), flag, flag, time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// Authenticate returns the user id when the email and password match an
// authorised user.
func (m *UserModel) Authenticate(email, password string) (int, error) {
	var (
		id             int
		hashedPassword []byte
	)
	err := m.DB.QueryRow("SELECT id, password FROM users WHERE email = ? AND authorised = 1", email).
		Scan(&id, &hashedPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	err = bcrypt.CompareHashAndPassword(hashedPassword, []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}
	return id, nil
}

func (m *UserModel) Exists(id int) (bool, error) {
	var exists bool
	err := m.DB.QueryRow("SELECT EXISTS(SELECT true FROM users WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

func (m *UserModel) AdminExists() (bool, error) {
	var exists bool
	err := m.DB.QueryRow("SELECT EXISTS(SELECT true FROM users WHERE admin = 1)").Scan(&exists)
	return exists, err
}
