package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFakeStorePutThenPresign(t *testing.T) {
	s := NewFakeStore()

	if err := s.Put(context.Background(), "a.png", []byte("data"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.Has("a.png") {
		t.Fatal("expected Has(a.png) to be true after Put")
	}

	url, err := s.PresignGet(context.Background(), "a.png", 3600)
	if err != nil {
		t.Fatalf("PresignGet: %v", err)
	}
	if url == "" {
		t.Fatal("expected a non-empty presigned URL")
	}
}

func TestFakeStorePresignMissingKey(t *testing.T) {
	s := NewFakeStore()
	if _, err := s.PresignGet(context.Background(), "missing.png", 3600); err == nil {
		t.Fatal("expected an error presigning an object that was never Put")
	}
}

func TestFakeStorePutFailure(t *testing.T) {
	s := NewFakeStore()
	s.FailPut = errors.New("disk full")

	if err := s.Put(context.Background(), "a.png", []byte("data"), "image/png"); err == nil {
		t.Fatal("expected Put to fail")
	}
	if s.Has("a.png") {
		t.Fatal("expected Has(a.png) to be false after a failed Put")
	}
}
