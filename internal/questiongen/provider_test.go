package questiongen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campushire/skillcheck/internal/config"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
		wantErr  string
	}{
		{"openai", config.Config{QuestionProvider: "openai", OpenAIAPIKey: "k", OpenAIModel: "gpt-4o-mini"}, "openai:gpt-4o-mini", ""},
		{"openai without key", config.Config{QuestionProvider: "openai"}, "", "OPENAI_API_KEY"},
		{"vertex without project", config.Config{QuestionProvider: "vertex"}, "", "VERTEX_PROJECT"},
		{"unknown", config.Config{QuestionProvider: "bard"}, "", "unknown question provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, closeFn, err := FromConfig(context.Background(), &tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer closeFn()
			if gen.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", gen.Name(), tt.wantName)
			}
		})
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": "Here you go:\n" + validBody},
			}},
		})
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL+"/v1", "test-key", "test-model")
	questions, err := g.Generate(context.Background(), "React", 5)
	if err != nil {
		t.Fatal(err)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q", gotModel)
	}
	if len(questions) != 5 || questions[0].Explanation != "e1" {
		t.Errorf("questions = %+v", questions)
	}
}
