package service

import (
	"testing"
	"time"

	"github.com/campushire/skillcheck/internal/config"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "secret", JWTIssuer: "campushire", JWTExpiry: time.Hour})

	token, err := svc.IssueToken("ana@campus.edu", "Ana")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Email != "ana@campus.edu" || claims.Name != "Ana" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.Owns("ANA@campus.edu") || claims.Owns("bo@campus.edu") {
		t.Error("Owns mismatch")
	}
}

func TestAuthServiceRejects(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "secret", JWTIssuer: "campushire", JWTExpiry: time.Hour})
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTIssuer: "campushire", JWTExpiry: time.Hour})
	expired := NewAuthService(&config.Config{JWTSecret: "secret", JWTIssuer: "campushire", JWTExpiry: -time.Hour})
	foreign := NewAuthService(&config.Config{JWTSecret: "secret", JWTIssuer: "elsewhere", JWTExpiry: time.Hour})

	tests := []struct {
		name   string
		issuer *AuthService
	}{
		{"wrong secret", other},
		{"expired", expired},
		{"wrong issuer", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.issuer.IssueToken("ana@campus.edu", "")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := svc.ValidateToken(token); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if _, err := svc.ValidateToken("garbage"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestClaimsWithoutEmailOwnAnything(t *testing.T) {
	c := &Claims{}
	if !c.Owns("anyone@campus.edu") {
		t.Error("service token should not be bound to a user")
	}
}
