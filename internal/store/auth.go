package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/aegis-gateway/aegis/internal/models"
)

// Argon2id parameters, grounded on gophkeeper's DeriveMasterKey call
// shape (time=1, memory=64 MiB, threads=4), with a longer key length
// for password verification rather than key derivation.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// MinPasswordLength enforces spec.md §4.7's password floor.
const MinPasswordLength = 6

// ErrPasswordTooShort is returned by HashPassword for inputs below
// MinPasswordLength.
var ErrPasswordTooShort = errors.New("store: password shorter than minimum length")

// ErrAdminNotFound is returned when no admin matches a username.
var ErrAdminNotFound = errors.New("store: admin not found")

// ErrInvalidCredentials is returned by Authenticate on any mismatch,
// deliberately not distinguishing "no such user" from "wrong password".
var ErrInvalidCredentials = errors.New("store: invalid credentials")

// HashPassword derives an Argon2id hash with a fresh random salt,
// encoded as "salt_b64$hash_b64" for storage in admins.password_hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(hash), nil
}

func verifyPassword(password, encoded string) (bool, error) {
	parts := strings.SplitN(encoded, "$", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("store: malformed password hash")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, err
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// CreateAdmin inserts a new dashboard administrator account.
func (s *Store) CreateAdmin(ctx context.Context, admin models.Admin) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO admins (id, username, password_hash) VALUES (?, ?, ?)`,
		admin.ID, admin.Username, admin.PasswordHash)
	return err
}

// SetAdminPassword updates an existing admin's password hash.
func (s *Store) SetAdminPassword(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE admins SET password_hash = ? WHERE username = ?`, passwordHash, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// Authenticate verifies username/password against the stored Argon2id
// hash and returns the admin record on success.
func (s *Store) Authenticate(ctx context.Context, username, password string) (models.Admin, error) {
	var admin models.Admin
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash FROM admins WHERE username = ?`, username).
		Scan(&admin.ID, &admin.Username, &admin.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Admin{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Admin{}, err
	}

	ok, err := verifyPassword(password, admin.PasswordHash)
	if err != nil || !ok {
		return models.Admin{}, ErrInvalidCredentials
	}
	return admin, nil
}
