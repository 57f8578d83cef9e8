package config

import (
	"testing"
	"time"
)

func TestAuthNormalizeDerivesJWKSURL(t *testing.T) {
	a := AuthConfig{Issuer: "https://id.example.com/"}
	a = a.Normalize()
	if a.JWKSURL != "https://id.example.com/.well-known/jwks.json" {
		t.Fatalf("unexpected jwks url: %s", a.JWKSURL)
	}
	if a.Issuer != "https://id.example.com" {
		t.Fatalf("expected trailing slash stripped, got %s", a.Issuer)
	}
	if a.CacheTTL != 10*time.Minute {
		t.Fatalf("expected default cache ttl, got %v", a.CacheTTL)
	}
}

func TestAuthNormalizeKeepsExplicitJWKSURL(t *testing.T) {
	a := AuthConfig{Issuer: "https://id.example.com", JWKSURL: "https://keys.example.com/jwks"}
	a = a.Normalize()
	if a.JWKSURL != "https://keys.example.com/jwks" {
		t.Fatalf("explicit jwks url should win, got %s", a.JWKSURL)
	}
}

func TestAuthValidate(t *testing.T) {
	if err := (AuthConfig{Enabled: false}).Validate(); err != nil {
		t.Fatalf("disabled auth should not require issuer: %v", err)
	}
	if err := (AuthConfig{Enabled: true, Audience: "aud"}).Validate(); err == nil {
		t.Fatalf("expected missing issuer error")
	}
	if err := (AuthConfig{Enabled: true, Issuer: "https://id.example.com"}).Validate(); err == nil {
		t.Fatalf("expected missing audience error")
	}
}

func TestQuotaValidate(t *testing.T) {
	if err := (QuotaConfig{Limit: 0, Window: time.Hour}).Validate(); err == nil {
		t.Fatalf("expected limit validation error")
	}
	if err := (QuotaConfig{Limit: 5, Window: 0}).Validate(); err == nil {
		t.Fatalf("expected window validation error")
	}
	if err := (QuotaConfig{Limit: 5, Window: 24 * time.Hour}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchNormalizeDefaults(t *testing.T) {
	s := SearchConfig{}.Normalize()
	if s.Provider != "serper" || s.MaxResults != 5 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: "6379"}
	if r.Addr() != "localhost:6379" {
		t.Fatalf("unexpected addr: %s", r.Addr())
	}
	if err := (RedisConfig{Host: "localhost"}).Validate(); err == nil {
		t.Fatalf("expected port validation error")
	}
}
