package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 30 * 24 * time.Hour

// stateAudience marks OAuth state tokens. Bearer parsing refuses them and
// state parsing requires them.
const stateAudience = "calendar-oauth-state"

var errWrongAudience = errors.New("token audience not accepted here")

// GenerateToken issues an HS256 bearer token whose subject is the owner id.
func GenerateToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	return sign(secret, userID, ttl, nil)
}

// GenerateState issues a short lived token for the OAuth state parameter.
// It is not accepted as a bearer token.
func GenerateState(secret []byte, userID string, ttl time.Duration) (string, error) {
	return sign(secret, userID, ttl, jwt.ClaimStrings{stateAudience})
}

func sign(secret []byte, userID string, ttl time.Duration, aud jwt.ClaimStrings) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseToken returns the owner id carried in the token subject. State
// tokens are rejected.
func ParseToken(secret []byte, tokenString string) (string, error) {
	claims, err := parse(secret, tokenString)
	if err != nil {
		return "", err
	}
	if len(claims.Audience) != 0 {
		return "", errWrongAudience
	}
	return claims.Subject, nil
}

// ParseState returns the owner id of a token made by GenerateState.
func ParseState(secret []byte, tokenString string) (string, error) {
	claims, err := parse(secret, tokenString, jwt.WithAudience(stateAudience))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func parse(secret []byte, tokenString string, opts ...jwt.ParserOption) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return claims, err
	}
	if !token.Valid || claims.Subject == "" {
		return claims, errors.New("token has no subject")
	}
	return claims, nil
}
