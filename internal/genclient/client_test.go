package genclient_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"llmspub/internal/genclient"
	"llmspub/internal/pub"
)

// fakeService implements the generation protocol for tests. Safe for
// concurrent use.
type fakeService struct {
	mu sync.Mutex

	total      int
	batchCalls []int // start offsets received
	finalize   map[string]any
	stall      bool // make process_batch return processed == start

	prepareStatus int
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /prepare_generation", func(w http.ResponseWriter, r *http.Request) {
		if s.prepareStatus != 0 {
			http.Error(w, "boom", s.prepareStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"job_id": "job-1", "total": s.total})
	})
	mux.HandleFunc("POST /process_batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobID string `json:"job_id"`
			Start int    `json:"start"`
			Size  int    `json:"size"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.batchCalls = append(s.batchCalls, req.Start)
		s.mu.Unlock()

		processed := req.Start + req.Size
		if processed > s.total {
			processed = s.total
		}
		if s.stall {
			processed = req.Start
		}
		json.NewEncoder(w).Encode(map[string]int{"processed": processed})
	})
	mux.HandleFunc("GET /finalize/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(s.finalize)
	})
	return mux
}

func newTestClient(t *testing.T, svc *fakeService) *genclient.Client {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)
	return genclient.New(server.URL, "test-key", pub.NewNopLogger())
}

func TestClient_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("advances in batches until every unit is processed", func(t *testing.T) {
		svc := &fakeService{
			total:    12,
			finalize: map[string]any{"llms_text": "summary", "llms_full_text": "full"},
		}
		client := newTestClient(t, svc)

		result, err := client.Run(ctx, "https://example.com", pub.OutputBoth)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Summary != "summary" || result.Full != "full" {
			t.Errorf("result = %q/%q, want summary/full", result.Summary, result.Full)
		}

		// 12 units at batch size 5: starts 0, 5, 10.
		want := []int{0, 5, 10}
		if len(svc.batchCalls) != len(want) {
			t.Fatalf("batch calls = %v, want %v", svc.batchCalls, want)
		}
		for i, start := range want {
			if svc.batchCalls[i] != start {
				t.Errorf("batch %d start = %d, want %d", i, svc.batchCalls[i], start)
			}
		}
	})

	t.Run("zero total skips straight to finalize", func(t *testing.T) {
		svc := &fakeService{
			total:    0,
			finalize: map[string]any{"llms_text": "summary", "llms_full_text": "full"},
		}
		client := newTestClient(t, svc)

		if _, err := client.Run(ctx, "https://example.com", pub.OutputBoth); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(svc.batchCalls) != 0 {
			t.Errorf("batch calls = %v, want none", svc.batchCalls)
		}
	})

	t.Run("non-advancing batch aborts as upstream failure", func(t *testing.T) {
		svc := &fakeService{
			total: 10,
			stall: true,
		}
		client := newTestClient(t, svc)

		_, err := client.Run(ctx, "https://example.com", pub.OutputBoth)
		if !errors.Is(err, pub.ErrUpstream) {
			t.Fatalf("Run() error = %v, want ErrUpstream", err)
		}
		if len(svc.batchCalls) != 1 {
			t.Errorf("batch calls = %d, want 1 before aborting", len(svc.batchCalls))
		}
	})

	t.Run("prepare failure aborts the job", func(t *testing.T) {
		svc := &fakeService{prepareStatus: http.StatusInternalServerError}
		client := newTestClient(t, svc)

		_, err := client.Run(ctx, "https://example.com", pub.OutputBoth)
		if !errors.Is(err, pub.ErrUpstream) {
			t.Fatalf("Run() error = %v, want ErrUpstream", err)
		}
	})

	t.Run("archive mode decodes the packed payload", func(t *testing.T) {
		archive := []byte("zip bytes")
		svc := &fakeService{
			total: 3,
			finalize: map[string]any{
				"llms_text":      "summary",
				"llms_full_text": "full",
				"is_zip_mode":    true,
				"zip_data":       base64.StdEncoding.EncodeToString(archive),
			},
		}
		client := newTestClient(t, svc)

		result, err := client.Run(ctx, "https://example.com", pub.OutputBoth)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if string(result.Archive) != string(archive) {
			t.Errorf("archive = %q, want %q", result.Archive, archive)
		}
		if result.Summary != "summary" || result.Full != "full" {
			t.Errorf("archive mode lost content strings: %q/%q", result.Summary, result.Full)
		}
	})

	t.Run("malformed archive payload is an upstream failure", func(t *testing.T) {
		svc := &fakeService{
			total: 3,
			finalize: map[string]any{
				"llms_text":   "summary",
				"is_zip_mode": true,
				"zip_data":    "not base64!!!",
			},
		}
		client := newTestClient(t, svc)

		_, err := client.Run(ctx, "https://example.com", pub.OutputBoth)
		if !errors.Is(err, pub.ErrUpstream) {
			t.Fatalf("Run() error = %v, want ErrUpstream", err)
		}
	})

	t.Run("empty finalize content is an upstream failure", func(t *testing.T) {
		svc := &fakeService{
			total:    3,
			finalize: map[string]any{},
		}
		client := newTestClient(t, svc)

		_, err := client.Run(ctx, "https://example.com", pub.OutputBoth)
		if !errors.Is(err, pub.ErrUpstream) {
			t.Fatalf("Run() error = %v, want ErrUpstream", err)
		}
	})
}

func TestClient_OTP(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	var gotAuth string
	// send_otp acknowledges with a bare 200 and no body.
	mux.HandleFunc("POST /send_otp", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /verify_otp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			OTP   string `json:"otp"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]bool{"verified": req.OTP == "123456"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := genclient.New(server.URL, "test-key", pub.NewNopLogger())

	if err := client.SendOTP(ctx, "Test User", "user@example.com"); err != nil {
		t.Fatalf("SendOTP() error = %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}

	ok, err := client.VerifyOTP(ctx, "user@example.com", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	if !ok {
		t.Error("VerifyOTP() = false for the correct code")
	}

	ok, err = client.VerifyOTP(ctx, "user@example.com", "000000")
	if err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	if ok {
		t.Error("VerifyOTP() = true for a wrong code")
	}
}
