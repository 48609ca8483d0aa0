package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestVerify_ValidToken(t *testing.T) {
	v := NewTokenVerifier("s3cret")

	r := httptest.NewRequest("GET", "/api/sessions", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	r.Header.Set(HeaderUserID, "u1")
	r.Header.Set(HeaderUserName, "Alex")

	id, err := v.Verify(r)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "u1" {
		t.Errorf("UserID = %q", id.UserID)
	}
	if id.Name != "Alex" {
		t.Errorf("Name = %q", id.Name)
	}
}

func TestVerify_Rejections(t *testing.T) {
	v := NewTokenVerifier("s3cret")

	tests := []struct {
		name   string
		auth   string
		userID string
	}{
		{"missing header", "", "u1"},
		{"wrong token", "Bearer nope", "u1"},
		{"missing bearer prefix", "s3cret", "u1"},
		{"wrong scheme", "Basic s3cret", "u1"},
		{"no user id", "Bearer s3cret", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/sessions", nil)
			if tc.auth != "" {
				r.Header.Set("Authorization", tc.auth)
			}
			if tc.userID != "" {
				r.Header.Set(HeaderUserID, tc.userID)
			}

			_, err := v.Verify(r)
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestVerify_EmptyTokenSkipsCheck(t *testing.T) {
	v := NewTokenVerifier("")

	r := httptest.NewRequest("GET", "/api/sessions", nil)
	r.Header.Set(HeaderUserID, "u1")

	id, err := v.Verify(r)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "u1" {
		t.Errorf("UserID = %q", id.UserID)
	}
}

func TestVerify_EmptyTokenStillRequiresUserID(t *testing.T) {
	v := NewTokenVerifier("")

	r := httptest.NewRequest("GET", "/api/sessions", nil)
	if _, err := v.Verify(r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
