package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"carrental/pkg/model"
	"carrental/pkg/sanitizer"

	"github.com/golang-jwt/jwt/v5"
)

const MinSecretLength = 32

// Claims is the token payload: the subject is the user id.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTProvider verifies HS256 bearer tokens. When issuer is set, tokens
// from any other issuer are rejected.
func NewJWTProvider(secret, issuer string) (*JWTProvider, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", MinSecretLength)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

func (p *JWTProvider) Resolve(r *http.Request) (*model.User, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, nil
	}

	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: malformed authorization header", ErrInvalidCredentials)
	}

	claims := &Claims{}
	_, err := p.parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}

	return &model.User{
		ID:    subject,
		Name:  sanitizer.TrimAndNormalize(claims.Name),
		Email: sanitizer.NormalizeEmail(claims.Email),
	}, nil
}

// Issue signs a token for user. Used by tooling and tests; the service itself
// never issues tokens.
func (p *JWTProvider) Issue(user model.User, ttl time.Duration) (string, error) {
	if user.ID == "" {
		return "", errors.New("user id is required")
	}

	now := time.Now().UTC()
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
