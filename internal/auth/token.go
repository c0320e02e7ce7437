package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const activationPurpose = "activate"

// ActivationClaims bind a token to one user in one state.
type ActivationClaims struct {
	Purpose string `json:"purpose"`
	State   string `json:"state"`
	jwt.RegisteredClaims
}

// ActivationTokens issues and checks single-use, time-bounded account tokens.
// A token embeds a fingerprint of the user's password hash, activation flag and
// last login, so any of those changing (activation included) invalidates it.
type ActivationTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewActivationTokens derives a signing key distinct from the session key.
func NewActivationTokens(secret string, ttl time.Duration) *ActivationTokens {
	sum := sha256.Sum256([]byte(secret + ":" + activationPurpose))
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ActivationTokens{key: sum[:], ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (t *ActivationTokens) WithClock(now func() time.Time) *ActivationTokens {
	t.now = now
	return t
}

// Issue creates a token for user.
func (t *ActivationTokens) Issue(user *models.User) (string, error) {
	now := t.now()
	claims := ActivationClaims{
		Purpose: activationPurpose,
		State:   fingerprint(user),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			Issuer:    "gatherly",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign activation token: %w", err)
	}
	return token, nil
}

// Verify checks that token was issued for user in its current state and is unexpired.
func (t *ActivationTokens) Verify(user *models.User, token string) error {
	parsed, err := jwt.ParseWithClaims(token, &ActivationClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}

	claims, ok := parsed.Claims.(*ActivationClaims)
	if !ok || !parsed.Valid {
		return ErrUnauthorized
	}
	if claims.Purpose != activationPurpose || claims.Subject != user.ID.String() {
		return ErrUnauthorized
	}
	if claims.State != fingerprint(user) {
		return ErrUnauthorized
	}
	return nil
}

func fingerprint(user *models.User) string {
	var lastLogin int64
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.Unix()
	}
	h := sha256.New()
	h.Write([]byte(user.ID.String()))
	h.Write([]byte{0})
	h.Write([]byte(user.PasswordHash))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(user.IsActive)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(lastLogin, 10)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
