package memory

import (
	"context"
	"testing"
)

func TestHeuristicExtract(t *testing.T) {
	tests := []struct {
		name         string
		userMessage  string
		wantWorth    bool
		wantCategory string
		wantKey      string
		wantValue    string
	}{
		{
			name:         "stated name",
			userMessage:  "My name is Alex Chen",
			wantWorth:    true,
			wantCategory: "user",
			wantKey:      "name",
			wantValue:    "Alex Chen",
		},
		{
			name:         "stated employer",
			userMessage:  "I work at Initech Logistics",
			wantWorth:    true,
			wantCategory: "user",
			wantKey:      "employer",
			wantValue:    "Initech Logistics",
		},
		{
			name:         "partner name",
			userMessage:  "My wife is Sarah",
			wantWorth:    true,
			wantCategory: "contact",
			wantKey:      "partner_name",
			wantValue:    "Sarah",
		},
		{
			name:         "contact email",
			userMessage:  "Sarah's email is sarah@example.com",
			wantWorth:    true,
			wantCategory: "contact",
			wantKey:      "email",
			wantValue:    "sarah@example.com",
		},
		{
			name:         "stated preference",
			userMessage:  "I prefer meetings in the morning",
			wantWorth:    true,
			wantCategory: "preference",
			wantKey:      "general",
			wantValue:    "meetings in the morning",
		},
		{
			name:         "active project",
			userMessage:  "I'm working on the annual budget review",
			wantWorth:    true,
			wantCategory: "project",
			wantKey:      "current",
			wantValue:    "annual budget review",
		},
		{
			name:        "unrecognized statement",
			userMessage: "What's the weather forecast for tomorrow?",
			wantWorth:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := HeuristicExtract(context.Background(), tt.userMessage, "", nil)
			if err != nil {
				t.Fatalf("HeuristicExtract() error: %v", err)
			}
			if result.WorthPersisting != tt.wantWorth {
				t.Fatalf("WorthPersisting = %v, want %v", result.WorthPersisting, tt.wantWorth)
			}
			if !tt.wantWorth {
				return
			}
			if len(result.Facts) != 1 {
				t.Fatalf("expected 1 fact, got %d", len(result.Facts))
			}
			f := result.Facts[0]
			if f.Category != tt.wantCategory || f.Key != tt.wantKey || f.Value != tt.wantValue {
				t.Errorf("fact = %+v, want category=%s key=%s value=%s", f, tt.wantCategory, tt.wantKey, tt.wantValue)
			}
		})
	}
}
