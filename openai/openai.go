// Package openai translates whole catalog files through the OpenAI
// Batch API. Each document becomes one chat-completion task in a JSONL
// batch file; the job is uploaded, started with a 24-hour completion
// window, polled until it finishes, and the output file is mapped back
// to documents by task id. Built directly on net/http; no SDK.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultModel is the translation model when none is configured.
const DefaultModel = "gpt-4o-mini"

// DefaultCheckInterval is the pause between batch status polls.
const DefaultCheckInterval = 10 * time.Second

// SystemPrompt instructs the model. The {source_language} and
// {target_language} placeholders are filled per document.
const SystemPrompt = "You are a translation assistant for ftl files. " +
	"I will send you plain text or text from ftl files with variables and text. " +
	"Please translate the following text from {source_language} to {target_language}, " +
	"keeping the original tags and variables (e.g., HTML or XML) unchanged. " +
	"Send only the translated text, without introductions."

// Document is one whole-file translation unit.
type Document struct {
	// Data is the source file content.
	Data string
	// SourceLocale and TargetLocale are language codes for the prompt.
	SourceLocale string
	TargetLocale string
	// TranslatedData receives the model output.
	TranslatedData string
}

// Config controls a Translator.
type Config struct {
	// APIKey authenticates every request. Required.
	APIKey string
	// Model selects the chat model. Default: gpt-4o-mini.
	Model string
	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string
	// SystemPrompt overrides the built-in prompt template.
	SystemPrompt string
	// CheckInterval is the batch poll period. Default: 10s.
	CheckInterval time.Duration
	// Proxy routes requests through the given URL when set.
	Proxy string
	// Timeout bounds each HTTP request. Default: 60s.
	Timeout time.Duration
	// Verbose enables debug logging of job progress.
	Verbose bool
}

// Translator drives the batch translation flow. Safe for concurrent
// use; all state is immutable after New.
type Translator struct {
	apiKey        string
	model         string
	baseURL       string
	systemPrompt  string
	checkInterval time.Duration
	verbose       bool
	client        *http.Client
}

// New builds a Translator from cfg.
func New(cfg Config) (*Translator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	t := &Translator{
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		systemPrompt:  cfg.SystemPrompt,
		checkInterval: cfg.CheckInterval,
		verbose:       cfg.Verbose,
	}
	if t.model == "" {
		t.model = DefaultModel
	}
	if t.baseURL == "" {
		t.baseURL = DefaultBaseURL
	}
	if t.systemPrompt == "" {
		t.systemPrompt = SystemPrompt
	}
	if t.checkInterval == 0 {
		t.checkInterval = DefaultCheckInterval
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		parsed, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("proxy %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	t.client = &http.Client{Transport: transport, Timeout: timeout}
	return t, nil
}

// ---------------------------------------------------------------------------
// Batch file
// ---------------------------------------------------------------------------

// BuildBatchFile renders one JSONL chat-completion task per document.
// Task ids are "id-1", "id-2", ... in document order; ParseOutput uses
// them to map results back regardless of output file ordering.
func (t *Translator) BuildBatchFile(docs []*Document) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type body struct {
		Model    string    `json:"model"`
		Messages []message `json:"messages"`
	}
	type task struct {
		CustomID string `json:"custom_id"`
		Method   string `json:"method"`
		URL      string `json:"url"`
		Body     body   `json:"body"`
	}

	var buf bytes.Buffer
	for i, doc := range docs {
		prompt := strings.NewReplacer(
			"{source_language}", doc.SourceLocale,
			"{target_language}", doc.TargetLocale,
		).Replace(t.systemPrompt)

		line, err := json.Marshal(task{
			CustomID: fmt.Sprintf("id-%d", i+1),
			Method:   http.MethodPost,
			URL:      "/v1/chat/completions",
			Body: body{
				Model: t.model,
				Messages: []message{
					{Role: "system", Content: prompt},
					{Role: "user", Content: doc.Data},
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("encoding task %d: %w", i+1, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Job lifecycle
// ---------------------------------------------------------------------------

// UploadFile uploads JSONL content with purpose=batch and returns the
// file id.
func (t *Translator) UploadFile(ctx context.Context, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "batch"); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	part, err := w.CreateFormFile("file", "batch.jsonl")
	if err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}

	respBody, err := t.do(ctx, http.MethodPost, "/files", w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}
	var file struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &file); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if file.ID == "" {
		return "", fmt.Errorf("upload response has no file id")
	}
	return file.ID, nil
}

// CreateBatch starts a batch job over the uploaded file and returns
// the job id.
func (t *Translator) CreateBatch(ctx context.Context, fileID string) (string, error) {
	body, err := json.Marshal(struct {
		InputFileID      string            `json:"input_file_id"`
		Endpoint         string            `json:"endpoint"`
		CompletionWindow string            `json:"completion_window"`
		Metadata         map[string]string `json:"metadata"`
	}{
		InputFileID:      fileID,
		Endpoint:         "/v1/chat/completions",
		CompletionWindow: "24h",
		Metadata: map[string]string{
			"model":   t.model,
			"purpose": "translate",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding batch request: %w", err)
	}

	respBody, err := t.do(ctx, http.MethodPost, "/batches", "application/json", body)
	if err != nil {
		return "", err
	}
	var job struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &job); err != nil {
		return "", fmt.Errorf("decoding batch response: %w", err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("batch response has no job id")
	}
	if t.verbose {
		log.Printf("[DEBUG] batch job created: %s", job.ID)
	}
	return job.ID, nil
}

// WaitBatch polls the job until it completes and returns the output
// file id. A job that ends failed, expired, or cancelled is an error;
// waiting stops when ctx does.
func (t *Translator) WaitBatch(ctx context.Context, batchID string) (string, error) {
	for {
		respBody, err := t.do(ctx, http.MethodGet, "/batches/"+batchID, "", nil)
		if err != nil {
			return "", err
		}
		var job struct {
			Status       string `json:"status"`
			OutputFileID string `json:"output_file_id"`
		}
		if err := json.Unmarshal(respBody, &job); err != nil {
			return "", fmt.Errorf("decoding batch status: %w", err)
		}

		switch job.Status {
		case "completed":
			if job.OutputFileID == "" {
				return "", fmt.Errorf("batch job %s completed without output file", batchID)
			}
			return job.OutputFileID, nil
		case "failed", "expired", "cancelled":
			return "", fmt.Errorf("batch job %s ended as %s", batchID, job.Status)
		}

		if t.verbose {
			log.Printf("[DEBUG] batch job %s is %s, next check in %v", batchID, job.Status, t.checkInterval)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.checkInterval):
		}
	}
}

// FetchOutput downloads the job's output file content.
func (t *Translator) FetchOutput(ctx context.Context, fileID string) ([]byte, error) {
	return t.do(ctx, http.MethodGet, "/files/"+fileID+"/content", "", nil)
}

// ParseOutput extracts one model response per task from the JSONL
// output, ordered by task id. The output file may list tasks in any
// order; a missing task id fails rather than shifting neighbors.
func ParseOutput(content []byte, count int) ([]string, error) {
	byID := make(map[string]string, count)
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var row struct {
			CustomID string `json:"custom_id"`
			Response struct {
				Body struct {
					Choices []struct {
						Message struct {
							Content string `json:"content"`
						} `json:"message"`
					} `json:"choices"`
				} `json:"body"`
			} `json:"response"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("decoding output line: %w", err)
		}
		if len(row.Response.Body.Choices) == 0 {
			return nil, fmt.Errorf("task %s has no choices in output", row.CustomID)
		}
		byID[row.CustomID] = row.Response.Body.Choices[0].Message.Content
	}

	results := make([]string, count)
	for i := range results {
		id := fmt.Sprintf("id-%d", i+1)
		content, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("task %s missing from batch output", id)
		}
		results[i] = content
	}
	return results, nil
}

// TranslateDocuments runs the whole flow over docs and fills each
// document's TranslatedData in place.
func (t *Translator) TranslateDocuments(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	jsonl, err := t.BuildBatchFile(docs)
	if err != nil {
		return err
	}
	fileID, err := t.UploadFile(ctx, jsonl)
	if err != nil {
		return fmt.Errorf("uploading batch file: %w", err)
	}
	batchID, err := t.CreateBatch(ctx, fileID)
	if err != nil {
		return fmt.Errorf("creating batch job: %w", err)
	}
	outputID, err := t.WaitBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("waiting for batch job: %w", err)
	}
	output, err := t.FetchOutput(ctx, outputID)
	if err != nil {
		return fmt.Errorf("fetching batch output: %w", err)
	}
	results, err := ParseOutput(output, len(docs))
	if err != nil {
		return err
	}
	for i, doc := range docs {
		doc.TranslatedData = results[i]
	}
	return nil
}

// do issues one authenticated request and returns the response body.
func (t *Translator) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
