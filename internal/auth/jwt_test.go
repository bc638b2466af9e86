package auth

import (
	"context"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/testutil"
)

const testSecret = "test-secret"

func TestVerify_ValidToken(t *testing.T) {
	v := NewJWTVerifier(testSecret, "")
	tok := testutil.GenerateJWT(t, testSecret, "C1", "customer")
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.SubjectID != "C1" || p.Role != RoleCustomer {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestVerify_IDClaimFallback(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "D1", "role": "Delivery"})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := NewJWTVerifier(testSecret, "").Verify(s)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.SubjectID != "D1" || p.Role != RoleDriver {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestVerify_Rejections(t *testing.T) {
	v := NewJWTVerifier(testSecret, "")
	cases := map[string]string{
		"wrong secret": testutil.GenerateJWT(t, "other", "C1", "customer"),
		"expired":      testutil.GenerateExpiredJWT(t, testSecret, "C1", "customer"),
		"unknown role": testutil.GenerateJWT(t, testSecret, "C1", "superuser"),
		"anon role":    testutil.GenerateJWT(t, testSecret, "C1", "anonymous"),
		"no subject":   testutil.GenerateJWT(t, testSecret, "", "customer"),
		"garbage":      "not-a-jwt",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			if !apperr.IsCode(err, apperr.CodeAuthentication) {
				t.Fatalf("expected authentication failure, got %v", err)
			}
		})
	}
}

func TestVerify_Issuer(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "A1", "role": "admin", "iss": "auth-service"})
	s, _ := tok.SignedString([]byte(testSecret))
	if _, err := NewJWTVerifier(testSecret, "auth-service").Verify(s); err != nil {
		t.Fatalf("matching issuer: %v", err)
	}
	if _, err := NewJWTVerifier(testSecret, "someone-else").Verify(s); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestAuthenticate_MissingTokenIsAnonymous(t *testing.T) {
	p, err := Authenticate(NewJWTVerifier(testSecret, ""), "  ")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !p.IsAnonymous() || p.SubjectID != "" {
		t.Fatalf("expected anonymous principal, got %+v", p)
	}
}

func TestAuthenticate_InvalidTokenFails(t *testing.T) {
	if _, err := Authenticate(NewJWTVerifier(testSecret, ""), "bad.token.value"); err == nil {
		t.Fatalf("expected failure for invalid token")
	}
}

func TestParseBearer(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"abc", "abc", false},
		{"Basic abc", "", true},
	}
	for _, c := range cases {
		got, err := ParseBearer(c.in)
		if (err != nil) != c.wantErr || got != c.want {
			t.Fatalf("ParseBearer(%q) = %q, %v", c.in, got, err)
		}
	}
}

func TestTokenFromMD(t *testing.T) {
	if tok, err := TokenFromMD(context.Background()); err != nil || tok != "" {
		t.Fatalf("no metadata: %q %v", tok, err)
	}
	ctx := testutil.CtxWithBearer(context.Background(), "xyz")
	if tok, err := TokenFromMD(ctx); err != nil || tok != "xyz" {
		t.Fatalf("bearer metadata: %q %v", tok, err)
	}
}
