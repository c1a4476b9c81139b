// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/termkeep/termkeep/lib/secret"
)

// testBuffer creates a secret.Buffer from a string for testing. The buffer
// is automatically closed when the test completes.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(value))
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client == nil {
			t.Fatal("NewClient returned nil")
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		_, err := NewClient(ClientConfig{})
		if err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewClient(ClientConfig{HomeserverURL: "://invalid"})
		if err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})

	t.Run("trailing slash stripped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/versions" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			writeJSON(writer, ServerVersionsResponse{Versions: []string{"v1.11"}})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL + "/"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if _, err := client.ServerVersions(context.Background()); err != nil {
			t.Fatalf("ServerVersions failed: %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/login" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			var body LoginRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode login request: %v", err)
			}
			if body.Type != "m.login.password" {
				t.Errorf("unexpected login type: %s", body.Type)
			}
			if body.User != "keeper" {
				t.Errorf("unexpected user: %s", body.User)
			}
			if body.Password != "hunter2" {
				t.Errorf("unexpected password: %s", body.Password)
			}

			writeJSON(writer, AuthResponse{
				UserID:      "@keeper:example.org",
				AccessToken: "syt_keeper_token",
				DeviceID:    "DEVICE1",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		session, err := client.Login(context.Background(), "keeper", testBuffer(t, "hunter2"))
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		defer session.Close()

		if session.UserID() != "@keeper:example.org" {
			t.Errorf("unexpected user ID: %s", session.UserID())
		}
		if session.DeviceID() != "DEVICE1" {
			t.Errorf("unexpected device ID: %s", session.DeviceID())
		}
	})

	t.Run("missing username", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if _, err := client.Login(context.Background(), "", testBuffer(t, "pw")); err == nil {
			t.Fatal("expected error for missing username")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(map[string]string{
				"errcode": "M_FORBIDDEN",
				"error":   "Invalid password",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		_, err = client.Login(context.Background(), "keeper", testBuffer(t, "wrong"))
		if err == nil {
			t.Fatal("expected error for wrong password")
		}
		if !IsMatrixError(err, ErrCodeForbidden) {
			t.Errorf("expected M_FORBIDDEN, got: %v", err)
		}
	})
}

func TestSessionFromToken(t *testing.T) {
	client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	session, err := client.SessionFromToken("@keeper:example.org", "syt_keeper_token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	defer session.Close()

	if session.UserID() != "@keeper:example.org" {
		t.Errorf("unexpected user ID: %s", session.UserID())
	}
}

func TestMatrixError(t *testing.T) {
	t.Run("error formatting", func(t *testing.T) {
		err := &MatrixError{Code: "M_NOT_FOUND", Message: "room not found", StatusCode: 404}
		want := "matrix: M_NOT_FOUND (404): room not found"
		if err.Error() != want {
			t.Errorf("got %q, want %q", err.Error(), want)
		}
	})

	t.Run("errors.As through wrapping", func(t *testing.T) {
		inner := &MatrixError{Code: ErrCodeUnknownToken, StatusCode: 401}
		wrapped := errors.Join(errors.New("outer"), inner)
		if !IsMatrixError(wrapped, ErrCodeUnknownToken) {
			t.Error("IsMatrixError failed to unwrap")
		}
		if IsMatrixError(wrapped, ErrCodeForbidden) {
			t.Error("IsMatrixError matched wrong code")
		}
	})

	t.Run("nil and plain errors", func(t *testing.T) {
		if IsMatrixError(nil, ErrCodeForbidden) {
			t.Error("IsMatrixError matched nil")
		}
		if IsMatrixError(errors.New("plain"), ErrCodeForbidden) {
			t.Error("IsMatrixError matched plain error")
		}
	})
}
