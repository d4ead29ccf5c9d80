package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Session is what a verified session token asserts.
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

// Codec signs and verifies stateless session tokens with HS256. It never
// looks at the revocation ledger.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec returns common.ErrConfig when secret is empty or ttl is not positive.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, common.ErrConfig.WithCause(errors.New("signing secret is not configured"))
	}
	if ttl <= 0 {
		return nil, common.ErrConfig.WithCause(errors.New("session token ttl must be positive"))
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for userID valid for the codec ttl. Each token gets a
// random ID so two tokens issued within the same second differ.
func (c *Codec) Issue(userID string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt.Truncate(time.Second), nil
}

// Verify checks signature and expiry. It returns common.ErrTokenExpired once
// now >= exp and common.ErrInvalidToken for anything else that is wrong.
func (c *Codec) Verify(tokenString string) (*Session, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return &Session{UserID: claims.UserID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
