package analysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpstream(handler http.Handler) (*UpstreamClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewUpstreamClient(srv.URL), srv
}

func TestCallSuccess(t *testing.T) {
	type reply struct {
		Answer string `json:"answer"`
	}

	var gotPath, gotContentType string
	var gotBody []byte
	c, srv := newTestUpstream(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	var out reply
	err := c.Call(context.Background(), "/find-competitor", map[string]string{"source_url": "https://a.example"}, &out, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Answer)
	assert.Equal(t, "/find-competitor", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"source_url":"https://a.example"}`, string(gotBody))
}

func TestCallUpstreamErrorDetail(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{
			name:       "fastapi detail string",
			status:     http.StatusPaymentRequired,
			body:       `{"detail":"Monthly quota exceeded. Please upgrade your plan."}`,
			wantDetail: "Monthly quota exceeded. Please upgrade your plan.",
		},
		{
			name:       "error key",
			status:     http.StatusBadRequest,
			body:       `{"error":"could not fetch page"}`,
			wantDetail: "could not fetch page",
		},
		{
			name:       "message key",
			status:     http.StatusInternalServerError,
			body:       `{"message":"engine exploded"}`,
			wantDetail: "engine exploded",
		},
		{
			name:       "structured detail stays json",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","source_url"],"msg":"field required"}]}`,
			wantDetail: `[{"loc":["body","source_url"],"msg":"field required"}]`,
		},
		{
			name:       "plain text body",
			status:     http.StatusBadGateway,
			body:       "upstream exploded",
			wantDetail: "upstream exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestUpstream(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := c.Call(context.Background(), "/analyze", struct{}{}, nil, time.Second)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUpstream)

			var ue *UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.status, ue.Status)
			assert.Equal(t, tt.wantDetail, ue.Detail)
		})
	}
}

func TestCallTimeout(t *testing.T) {
	c, srv := newTestUpstream(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	start := time.Now()
	err := c.Call(context.Background(), "/find-competitor", struct{}{}, nil, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewUpstreamClient(srv.URL)
	err := c.Call(context.Background(), "/analyze", struct{}{}, nil, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestCallDecodeError(t *testing.T) {
	c, srv := newTestUpstream(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":`))
	}))
	defer srv.Close()

	var out struct{ Answer string }
	err := c.Call(context.Background(), "/analyze", struct{}{}, &out, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCallNeverRetries(t *testing.T) {
	var calls int32
	c, srv := newTestUpstream(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"transient"}`))
	}))
	defer srv.Close()

	err := c.Call(context.Background(), "/analyze", struct{}{}, nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExtractDetailTruncatesLongBodies(t *testing.T) {
	long := make([]byte, maxErrorDetailBytes*2)
	for i := range long {
		long[i] = 'x'
	}
	detail := extractDetail(long)
	assert.Len(t, detail, maxErrorDetailBytes)
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", timeoutError("/analyze", context.DeadlineExceeded), msgTimeout},
		{"transport", transportError("/analyze", io.ErrUnexpectedEOF), msgUnreachable},
		{"decode", decodeError("/analyze", io.ErrUnexpectedEOF), msgBadEngineReply},
		{"upstream with detail", upstreamError("/analyze", 402, "quota exceeded"), "quota exceeded"},
		{"upstream without detail", upstreamError("/analyze", 500, ""), msgEngineRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err))
		})
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	err := upstreamError("/analyze", 402, "quota exceeded")
	assert.Contains(t, err.Error(), "status 402")
	assert.Contains(t, err.Error(), "quota exceeded")

	wrapped := timeoutError("/find-competitor", context.DeadlineExceeded)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
}
