package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalClientFailsWhenArtifactMissing(t *testing.T) {
	_, err := NewLocalClient(context.Background(), LocalConfig{
		ModelPath:  filepath.Join(t.TempDir(), "missing-model"),
		RuntimeURL: "http://127.0.0.1:1",
	})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("NewLocalClient() error = %v, want fs.ErrNotExist", err)
	}
}

func TestNewLocalClientFailsWhenRuntimeCannotLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	_, err := NewLocalClient(context.Background(), LocalConfig{ModelPath: t.TempDir(), RuntimeURL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "status=404") {
		t.Fatalf("NewLocalClient() error = %v", err)
	}
}

func TestLocalClientReturnsOnlyContinuation(t *testing.T) {
	modelDir := filepath.Join(t.TempDir(), "Qwen2.5-Coder-7B-Instruct")
	if err := os.Mkdir(modelDir, 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	var loads, generations int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		var req localGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "Qwen2.5-Coder-7B-Instruct" {
			t.Fatalf("model = %q", req.Model)
		}
		if req.Prompt == "" {
			loads++
			_, _ = io.WriteString(w, `{"model":"Qwen2.5-Coder-7B-Instruct","response":"","done":true}`)
			return
		}
		generations++
		if !req.Raw || req.Stream {
			t.Fatalf("request = %+v", req)
		}
		if req.Options["num_predict"] != float64(512) {
			t.Fatalf("options = %#v", req.Options)
		}
		if !strings.HasSuffix(req.Prompt, "<|im_start|>assistant\n") {
			t.Fatalf("prompt = %q", req.Prompt)
		}
		out, _ := json.Marshal(localGenerateResponse{
			Response: req.Prompt + "```sql\nSELECT 1\n```<|im_end|>",
			Done:     true,
		})
		_, _ = w.Write(out)
	}))
	defer srv.Close()

	client, err := NewLocalClient(context.Background(), LocalConfig{ModelPath: modelDir, RuntimeURL: srv.URL})
	if err != nil {
		t.Fatalf("NewLocalClient() error = %v", err)
	}
	if loads != 1 {
		t.Fatalf("loads = %d", loads)
	}

	messages, err := BuildMessages(VariantLocal, "list holders", "policy(id)")
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	resp, err := client.Chat(context.Background(), ChatRequest{Messages: messages})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	content, err := resp.Content()
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if content != "```sql\nSELECT 1\n```" {
		t.Fatalf("Content() = %q", content)
	}
	if generations != 1 {
		t.Fatalf("generations = %d", generations)
	}
}

func TestApplyChatTemplate(t *testing.T) {
	got := ApplyChatTemplate([]Message{{Role: RoleSystem, Content: "s"}, {Role: RoleUser, Content: "u"}})
	want := "<|im_start|>system\ns<|im_end|>\n<|im_start|>user\nu<|im_end|>\n<|im_start|>assistant\n"
	if got != want {
		t.Fatalf("ApplyChatTemplate() = %q, want %q", got, want)
	}
}
