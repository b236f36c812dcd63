package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/slack-go/slack"
)

// --- isChannelID tests ---

func TestIsChannelID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"standard channel ID", "C01234567890", true},
		{"short channel ID", "C01234567", true},
		{"private group ID", "G0ABC123DEF", true},
		{"too long", "C012345678901234", false},
		{"empty string", "", false},
		{"too short", "C1234567", false},
		{"starts with U", "U01234567890", false},
		{"lowercase letters", "C01234abcdef", false},
		{"channel name", "#incidents", false},
		{"has dashes", "C0123-4567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isChannelID(tt.input); got != tt.want {
				t.Errorf("isChannelID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// --- ChannelResolver tests ---

func TestChannelResolver_ResolveChannel_AlreadyChannelID(t *testing.T) {
	// nil client: a channel ID never reaches the API
	resolver := NewChannelResolver(nil)

	result, err := resolver.ResolveChannel(context.Background(), "C01234567890")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "C01234567890" {
		t.Errorf("got %q, want %q", result, "C01234567890")
	}
}

func TestChannelResolver_ResolveChannel_EmptyInput(t *testing.T) {
	if _, err := NewChannelResolver(nil).ResolveChannel(context.Background(), ""); err == nil {
		t.Error("expected error for empty input, got nil")
	}
}

func TestChannelResolver_ResolveChannel_CacheHit(t *testing.T) {
	resolver := NewChannelResolver(nil)
	resolver.cache["incidents"] = "C01234567890"

	for _, input := range []string{"#incidents", "incidents"} {
		result, err := resolver.ResolveChannel(context.Background(), input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "C01234567890" {
			t.Errorf("ResolveChannel(%q) = %q, want %q", input, result, "C01234567890")
		}
	}
}

func writeConversations(w http.ResponseWriter, next string, channels ...map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":                true,
		"channels":          channels,
		"response_metadata": map[string]string{"next_cursor": next},
	})
}

func TestChannelResolver_LookupPagesAndCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		r.ParseForm()
		if r.Form.Get("cursor") == "" {
			writeConversations(w, "page2", map[string]interface{}{"id": "C00000000001", "name": "general"})
			return
		}
		writeConversations(w, "", map[string]interface{}{"id": "C00000000002", "name": "incidents"})
	}))
	defer server.Close()

	client := slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/"))
	resolver := NewChannelResolver(client)

	id, err := resolver.ResolveChannel(context.Background(), "#incidents")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "C00000000002" {
		t.Errorf("got %q, want C00000000002", id)
	}

	before := calls.Load()
	if _, err := resolver.ResolveChannel(context.Background(), "incidents"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != before {
		t.Error("second lookup should be served from the cache")
	}
}

func TestChannelResolver_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeConversations(w, "")
	}))
	defer server.Close()

	resolver := NewChannelResolver(slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/")))
	if _, err := resolver.ResolveChannel(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown channel")
	}
}
