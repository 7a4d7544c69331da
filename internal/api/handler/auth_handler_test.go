package handler

import "testing"

func TestSafeReturnTo(t *testing.T) {
	tests := map[string]string{
		"":                         "/",
		"/api/tasks?page=2":        "/api/tasks?page=2",
		"/":                        "/",
		"tasks":                    "/",
		"//evil.example.com/x":     "/",
		"/\\evil.example.com":      "/",
		"https://evil.example.com": "/",
		"javascript:alert(1)":      "/",
	}
	for in, want := range tests {
		if got := SafeReturnTo(in); got != want {
			t.Errorf("SafeReturnTo(%q) = %q, want %q", in, got, want)
		}
	}
}
