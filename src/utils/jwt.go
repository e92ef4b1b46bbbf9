package utils

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

var ErrMissingBearer = errors.New("missing bearer token")

func JwksCreatePublicKey(jwksURL string, refreshInterval time.Duration) (*keyfunc.JWKS, error) {
	// Refresh the JWKS periodically; a failed refresh keeps the old keys.
	options := keyfunc.Options{
		RefreshInterval: refreshInterval,
		RefreshErrorHandler: func(err error) {
			log.Printf("jwks refresh failed: %s", err.Error())
		},
	}

	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, err
	}
	return jwks, nil
}

// ParseBearer validates an "Authorization: Bearer <jwt>" header value.
func ParseBearer(header string, keyFunc jwt.Keyfunc) (*jwt.Token, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" || raw == header {
		return nil, ErrMissingBearer
	}
	token, err := jwt.Parse(raw, keyFunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}
