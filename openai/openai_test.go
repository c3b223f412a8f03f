package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := New(Config{APIKey: "k"}); err != nil {
		t.Fatalf("New with key: %v", err)
	}
}

func TestBuildBatchFile(t *testing.T) {
	t.Parallel()

	tr, err := New(Config{APIKey: "k", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	docs := []*Document{
		{Data: "first file", SourceLocale: "ru", TargetLocale: "en"},
		{Data: "second file", SourceLocale: "ru", TargetLocale: "de"},
	}
	jsonl, err := tr.BuildBatchFile(docs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(string(jsonl)))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d JSONL lines, want 2", len(lines))
	}

	for i, line := range lines {
		var task struct {
			CustomID string `json:"custom_id"`
			Method   string `json:"method"`
			URL      string `json:"url"`
			Body     struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			} `json:"body"`
		}
		if err := json.Unmarshal([]byte(line), &task); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if want := fmt.Sprintf("id-%d", i+1); task.CustomID != want {
			t.Errorf("custom_id = %q, want %q", task.CustomID, want)
		}
		if task.Method != "POST" || task.URL != "/v1/chat/completions" {
			t.Errorf("task target = %s %s", task.Method, task.URL)
		}
		if task.Body.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", task.Body.Model)
		}
		if len(task.Body.Messages) != 2 {
			t.Fatalf("got %d messages, want 2", len(task.Body.Messages))
		}
		system := task.Body.Messages[0]
		if system.Role != "system" {
			t.Errorf("first message role = %q", system.Role)
		}
		if !strings.Contains(system.Content, "from ru to "+docs[i].TargetLocale) {
			t.Errorf("system prompt not parameterized: %q", system.Content)
		}
		if strings.Contains(system.Content, "{source_language}") {
			t.Errorf("placeholder left in prompt: %q", system.Content)
		}
		user := task.Body.Messages[1]
		if user.Role != "user" || user.Content != docs[i].Data {
			t.Errorf("user message = %+v", user)
		}
	}
}

func TestParseOutput(t *testing.T) {
	t.Parallel()

	line := func(id, content string) string {
		return fmt.Sprintf(`{"custom_id":%q,"response":{"body":{"choices":[{"message":{"content":%q}}]}}}`, id, content)
	}

	t.Run("out of order output maps by id", func(t *testing.T) {
		content := line("id-2", "two") + "\n" + line("id-1", "one") + "\n"
		results, err := ParseOutput([]byte(content), 2)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if results[0] != "one" || results[1] != "two" {
			t.Errorf("results = %v", results)
		}
	})

	t.Run("missing task id", func(t *testing.T) {
		content := line("id-1", "one") + "\n"
		if _, err := ParseOutput([]byte(content), 2); err == nil {
			t.Fatal("expected error for missing id-2")
		}
	})

	t.Run("no choices", func(t *testing.T) {
		content := `{"custom_id":"id-1","response":{"body":{"choices":[]}}}`
		if _, err := ParseOutput([]byte(content), 1); err == nil {
			t.Fatal("expected error for empty choices")
		}
	})

	t.Run("malformed line", func(t *testing.T) {
		if _, err := ParseOutput([]byte("not json\n"), 1); err == nil {
			t.Fatal("expected error for malformed line")
		}
	})
}

func TestTranslateDocuments(t *testing.T) {
	t.Parallel()

	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			if got := r.FormValue("purpose"); got != "batch" {
				t.Errorf("purpose = %q, want batch", got)
			}
			fmt.Fprint(w, `{"id":"file-123"}`)

		case r.Method == http.MethodPost && r.URL.Path == "/batches":
			var req struct {
				InputFileID      string `json:"input_file_id"`
				CompletionWindow string `json:"completion_window"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode batch request: %v", err)
			}
			if req.InputFileID != "file-123" {
				t.Errorf("input_file_id = %q", req.InputFileID)
			}
			if req.CompletionWindow != "24h" {
				t.Errorf("completion_window = %q", req.CompletionWindow)
			}
			fmt.Fprint(w, `{"id":"batch-9","status":"validating"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/batches/batch-9":
			if atomic.AddInt32(&polls, 1) < 2 {
				fmt.Fprint(w, `{"id":"batch-9","status":"in_progress"}`)
				return
			}
			fmt.Fprint(w, `{"id":"batch-9","status":"completed","output_file_id":"out-5"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/files/out-5/content":
			// Reversed order: mapping must go by custom_id, not line order.
			fmt.Fprint(w,
				`{"custom_id":"id-2","response":{"body":{"choices":[{"message":{"content":"deux"}}]}}}`+"\n"+
					`{"custom_id":"id-1","response":{"body":{"choices":[{"message":{"content":"un"}}]}}}`+"\n")

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr, err := New(Config{
		APIKey:        "test-key",
		BaseURL:       srv.URL,
		CheckInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	docs := []*Document{
		{Data: "one", SourceLocale: "en", TargetLocale: "fr"},
		{Data: "two", SourceLocale: "en", TargetLocale: "fr"},
	}
	if err := tr.TranslateDocuments(context.Background(), docs); err != nil {
		t.Fatalf("translate documents: %v", err)
	}

	if docs[0].TranslatedData != "un" || docs[1].TranslatedData != "deux" {
		t.Errorf("translated = %q, %q", docs[0].TranslatedData, docs[1].TranslatedData)
	}
	if p := atomic.LoadInt32(&polls); p < 2 {
		t.Errorf("status polled %d times, want at least 2", p)
	}
}

func TestWaitBatchTerminalFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"batch-1","status":"failed"}`)
	}))
	defer srv.Close()

	tr, err := New(Config{APIKey: "k", BaseURL: srv.URL, CheckInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = tr.WaitBatch(context.Background(), "batch-1")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("err = %v, want terminal failure", err)
	}
}

func TestWaitBatchHonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"batch-1","status":"in_progress"}`)
	}))
	defer srv.Close()

	tr, err := New(Config{APIKey: "k", BaseURL: srv.URL, CheckInterval: 10 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := tr.WaitBatch(ctx, "batch-1"); err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("WaitBatch ignored context for %v", elapsed)
	}
}
