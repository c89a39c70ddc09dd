package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_CountsEventsByKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pass, ok := r.BasicAuth(); !ok || pass != "pw" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "id: 1\nevent: trade\ndata: {}\n\n")
		fmt.Fprint(w, "id: 2\nevent: mark\ndata: {}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	st := newStats()
	run(ctx, config{url: srv.URL, password: "pw", conns: 3}, st)

	assert.Equal(t, int64(3), st.connected.Load())
	assert.Equal(t, int64(6), st.events.Load())
	assert.Zero(t, st.streamErrs.Load())
	assert.Equal(t, "mark=3 trade=3", st.summary())
}

func TestRun_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	st := newStats()
	run(context.Background(), config{url: srv.URL, conns: 2}, st)

	assert.Equal(t, int64(2), st.connectErrs.Load())
	assert.Zero(t, st.connected.Load())
}
