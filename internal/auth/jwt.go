package auth

import (
	"context"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"deliveryTracking/internal/apperr"
)

// Role is the capability class of a connection.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "delivery"
	RoleAdmin      Role = "admin"
	RoleAnonymous  Role = "anonymous"
)

// Valid reports whether r can be carried by a signed credential.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurant, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Principal represents the caller attached to a connection.
type Principal struct {
	SubjectID string // empty for anonymous connections
	Role      Role
}

// Anonymous is the identity given to connections without a credential.
func Anonymous() *Principal {
	return &Principal{Role: RoleAnonymous}
}

func (p *Principal) IsAnonymous() bool {
	return p == nil || p.Role == RoleAnonymous
}

func (p *Principal) Is(role Role) bool {
	return p != nil && p.Role == role
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Verifier turns a raw credential into a principal.
type Verifier interface {
	Verify(token string) (*Principal, error)
}

// JWTVerifier validates HS256 tokens carrying a role and a subject
// ("sub", or "id" for tokens minted by the auth service).
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}
}

type claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(token string) (*Principal, error) {
	if len(v.secret) == 0 {
		return nil, apperr.New(apperr.CodeAuthentication, "jwt secret is empty")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, apperr.Wrap(apperr.CodeAuthentication, err, "invalid credential")
	}
	c, _ := tok.Claims.(*claims)
	if c == nil {
		return nil, apperr.New(apperr.CodeAuthentication, "invalid claims")
	}
	subject := c.Subject
	if subject == "" {
		subject = c.ID
	}
	role := Role(strings.ToLower(strings.TrimSpace(c.Role)))
	if subject == "" || !role.Valid() {
		return nil, apperr.New(apperr.CodeAuthentication, "invalid claims")
	}
	return &Principal{SubjectID: subject, Role: role}, nil
}

// Authenticate resolves the identity of a new connection. An absent credential
// yields the anonymous principal; a present but invalid one is an error.
func Authenticate(v Verifier, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous(), nil
	}
	if v == nil {
		return nil, apperr.New(apperr.CodeAuthentication, "no verifier configured")
	}
	return v.Verify(token)
}

// ParseBearer strips an optional "Bearer " scheme. Any other scheme is rejected.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 1 {
		return parts[0], nil
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", apperr.New(apperr.CodeAuthentication, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// TokenFromMD extracts the bearer token from gRPC metadata, "" when absent.
func TokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", nil
	}
	return ParseBearer(vals[0])
}
