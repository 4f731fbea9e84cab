package main

import (
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/api"
)

func TestParseID(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	} {
		got, err := parseID(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("parseID(%q) = %d, %v", tc.in, got, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("olá mundo", 4); got != "olá…" {
		t.Errorf("truncate runes = %q", got)
	}
}

func TestMessageLine(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 0, 0, time.Local)
	m := api.Message{ID: 1, Body: "hi", UserID: 2, UserName: "Bob", CreatedAt: at}
	if got := messageLine(m, false); got != "[15:04] Bob: hi" {
		t.Errorf("incoming = %q", got)
	}
	if got := messageLine(m, true); got != "[15:04] You: hi" {
		t.Errorf("outgoing = %q", got)
	}
}

func TestFormatTimeZero(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Errorf("formatTime(zero) = %q", got)
	}
}
