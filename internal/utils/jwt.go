package utils // package utils provides session token signing and parsing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a session token.  It binds the local user
// id, the Discord id and the display name captured at login.
type SessionClaims struct {
	UserID    uint64 `json:"id"`
	DiscordID string `json:"discord_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// SessionToken is a signed JWT along with its expiry.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// ErrEmptySecret is returned when a token would be signed with no key.
var ErrEmptySecret = errors.New("session signing secret is empty")

// SessionSigner issues HS256 session tokens with a fixed lifetime.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionSigner returns a signer for the given secret and token lifetime.
func NewSessionSigner(secret string, ttl time.Duration) *SessionSigner {
	return &SessionSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign builds and signs a session token for the identity.
func (s *SessionSigner) Sign(userID uint64, discordID, username string) (SessionToken, error) {
	if len(s.secret) == 0 {
		return SessionToken{}, ErrEmptySecret
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := SessionClaims{
		UserID:    userID,
		DiscordID: discordID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies signature, algorithm and expiry of raw and
// returns its claims.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
	claims := new(SessionClaims)
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, errors.New("session token has no user id")
	}
	return claims, nil
}
