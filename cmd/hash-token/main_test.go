package main

import (
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func TestNewTokenGenerates(t *testing.T) {
	plain, hash, err := newToken("", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newToken: %v", err)
	}
	if _, err := uuid.Parse(plain); err != nil {
		t.Errorf("generated token %q is not a UUID: %v", plain, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		t.Errorf("hash does not match token: %v", err)
	}
}

func TestNewTokenKeepsGiven(t *testing.T) {
	plain, hash, err := newToken("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newToken: %v", err)
	}
	if plain != "s3cret" {
		t.Errorf("plain = %q, want s3cret", plain)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not match token: %v", err)
	}
}

func TestNewTokenBadCost(t *testing.T) {
	if _, _, err := newToken("x", bcrypt.MaxCost+1); err == nil {
		t.Error("expected error for cost above bcrypt.MaxCost")
	}
}
