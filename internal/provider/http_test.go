package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
)

func TestHTTPClientSubmit(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/jobs" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode submit body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"prov-123"}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Options{Name: "acme", BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	id, err := client.Submit(context.Background(), json.RawMessage(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "prov-123" {
		t.Fatalf("id = %q, want prov-123", id)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["prompt"] != "hi" {
		t.Fatalf("payload forwarded as %v", gotBody)
	}
}

func TestHTTPClientSubmitJobIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id":"alt-7"}`))
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(Options{BaseURL: srv.URL})
	id, err := client.Submit(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "alt-7" {
		t.Fatalf("id = %q, want alt-7", id)
	}
}

func TestHTTPClientSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(Options{BaseURL: srv.URL})
	if _, err := client.Submit(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error on 502")
	} else if !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("error should carry the body snippet: %v", err)
	}
}

func TestHTTPClientFetchStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.ProviderStatus
	}{
		{
			name: "completed with artifact",
			body: `{"status":"COMPLETED","output":{"url":"https://cdn/x.png"}}`,
			want: domain.ProviderStatus{State: domain.ProviderStateCompleted, ArtifactRef: "https://cdn/x.png"},
		},
		{
			name: "failed with reason",
			body: `{"status":"failed","error":"nsfw content"}`,
			want: domain.ProviderStatus{State: domain.ProviderStateFailed, Reason: "nsfw content"},
		},
		{
			name: "failed without reason gets default",
			body: `{"status":"error"}`,
			want: domain.ProviderStatus{State: domain.ProviderStateFailed, Reason: "provider reported failure"},
		},
		{
			name: "queued maps to processing",
			body: `{"status":"IN_QUEUE"}`,
			want: domain.ProviderStatus{State: domain.ProviderStateProcessing},
		},
		{
			name: "unknown status maps to processing",
			body: `{"status":"warming_up"}`,
			want: domain.ProviderStatus{State: domain.ProviderStateProcessing},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/jobs/prov-1" {
					t.Fatalf("unexpected path %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, _ := NewHTTPClient(Options{BaseURL: srv.URL})
			got, err := client.FetchStatus(context.Background(), "prov-1")
			if err != nil {
				t.Fatalf("fetch status: %v", err)
			}
			if got != tc.want {
				t.Fatalf("status = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestHTTPClientFetchStatusGoneJobFailsWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "job not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(Options{BaseURL: srv.URL})
	got, err := client.FetchStatus(context.Background(), "prov-1")
	if err != nil {
		t.Fatalf("a definitive 4xx must not surface as a transport error: %v", err)
	}
	if got.State != domain.ProviderStateFailed {
		t.Fatalf("state = %s, want failed", got.State)
	}
	if !strings.Contains(got.Reason, "job not found") {
		t.Fatalf("reason should carry the provider's detail: %q", got.Reason)
	}
}

func TestHTTPClientFetchStatusTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(Options{BaseURL: srv.URL})
	if _, err := client.FetchStatus(context.Background(), "prov-1"); err == nil {
		t.Fatalf("expected transport error on 504")
	}
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPClient(Options{}); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}

func TestSyntheticCompletesAfterConfiguredPolls(t *testing.T) {
	s := NewSynthetic("synthetic", 2)
	id, err := s.Submit(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	for i := 0; i < 2; i++ {
		st, err := s.FetchStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if st.State != domain.ProviderStateProcessing {
			t.Fatalf("poll %d state = %s, want processing", i, st.State)
		}
	}
	st, err := s.FetchStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("final fetch: %v", err)
	}
	if st.State != domain.ProviderStateCompleted || st.ArtifactRef == "" {
		t.Fatalf("final status = %#v, want completed with artifact", st)
	}
}

func TestSyntheticUnknownJobFails(t *testing.T) {
	s := NewSynthetic("synthetic", 0)
	st, err := s.FetchStatus(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.State != domain.ProviderStateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
}
