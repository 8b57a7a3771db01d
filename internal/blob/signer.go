package blob

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aspor-platform/docintake/internal/common"
)

// URLSigner issues and verifies the signed tokens behind /files/{token}.
// The token carries the object key, the permitted method, and an expiry; the
// store never exposes raw paths.
type URLSigner struct {
	secret    []byte
	publicURL string
}

type urlClaims struct {
	Key         string `json:"key"`
	Method      string `json:"method"`
	ContentType string `json:"ct,omitempty"`
	Filename    string `json:"fn,omitempty"`
	jwt.RegisteredClaims
}

func NewURLSigner(secret, publicURL string) *URLSigner {
	return &URLSigner{secret: []byte(secret), publicURL: publicURL}
}

// Sign returns a full URL whose token grants opts.Method on key until the
// TTL elapses.
func (s *URLSigner) Sign(key string, opts SignOptions) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("blob signing secret not configured")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	method := opts.Method
	if method == "" {
		method = MethodGet
	}
	now := time.Now()
	claims := urlClaims{
		Key:         key,
		Method:      string(method),
		ContentType: opts.ContentType,
		Filename:    opts.Filename,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign url token: %w", err)
	}
	return fmt.Sprintf("%s/files/%s", s.publicURL, url.PathEscape(token)), nil
}

// Grant is the verified content of a signed URL token.
type Grant struct {
	Key         string
	Method      Method
	ContentType string
	Filename    string
}

// Verify parses a token and returns the grant it carries. Expired or
// tampered tokens yield ErrNotFound so existence never leaks.
func (s *URLSigner) Verify(tokenString string) (*Grant, error) {
	claims := &urlClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, common.NotFoundErrorf("link expired or invalid")
	}
	return &Grant{
		Key:         claims.Key,
		Method:      Method(claims.Method),
		ContentType: claims.ContentType,
		Filename:    claims.Filename,
	}, nil
}
