// Package auth verifies and issues the signed bearer tokens that carry a chat
// identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Tyrowin/livechat/internal/chat"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the JWT payload. The id/name/email keys match the tokens issued
// by the account service.
type Claims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret. It
// implements chat.Verifier.
type JWTVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTVerifier returns a verifier for tokens signed with secret. When issuer
// is not empty, tokens must carry the same "iss" claim.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTVerifier{
		secret: secret,
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

// Verify parses and validates credential and returns the identity it carries.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (chat.Identity, error) {
	if credential == "" {
		return chat.Identity{}, chat.ErrAuthRequired
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(credential, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return chat.Identity{}, fmt.Errorf("%w: token expired", chat.ErrInvalidToken)
	case err != nil:
		return chat.Identity{}, fmt.Errorf("%w: %v", chat.ErrInvalidToken, err)
	case !token.Valid:
		return chat.Identity{}, chat.ErrInvalidToken
	}

	if claims.UserID == "" {
		return chat.Identity{}, fmt.Errorf("%w: missing id claim", chat.ErrInvalidToken)
	}
	return chat.Identity{ID: claims.UserID, Name: claims.Name, Email: claims.Email}, nil
}

// Issue signs a token for the given user that expires after ttl.
func (v *JWTVerifier) Issue(userID, name, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
