// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/sse"
)

// recording collects handler invocations in order.
type recording struct {
	calls  []string
	init   sse.InitPayload
	tokens []string
	final  string
	err    error
}

func (r *recording) handlers() Handlers {
	return Handlers{
		OnInit: func(p sse.InitPayload) {
			r.calls = append(r.calls, "init")
			r.init = p
		},
		OnToken: func(text string) {
			r.calls = append(r.calls, "token")
			r.tokens = append(r.tokens, text)
		},
		OnDone: func(final string) {
			r.calls = append(r.calls, "done")
			r.final = final
		},
		OnError: func(err error) {
			r.calls = append(r.calls, "error")
			r.err = err
		},
	}
}

func streamServer(t *testing.T, write func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		write(w)
	}))
}

func TestStreamOrdering(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter) {
		fmt.Fprint(w, "event: init\ndata: {\"session_id\":\"s1\",\"topic\":\"balance\",\"escalate\":false,\"engine\":\"rule-based\",\"suggestions\":[\"Check data balance\"]}\n\n")
		fmt.Fprint(w, "event: token\ndata: Check remaining data and minutes in the \n\n")
		fmt.Fprint(w, "event: token\ndata: app or text BALANCE to 12345.\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"reply\":\"Check remaining data and minutes in the app or text BALANCE to 12345.\"}\n\n")
	})
	defer srv.Close()

	rec := &recording{}
	err := New(srv.URL).Stream(context.Background(), model.ChatRequest{Message: "How do I check my data balance?"}, rec.handlers())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	want := []string{"init", "token", "token", "done"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("handler order = %v, want %v", rec.calls, want)
	}
	if rec.init.SessionID != "s1" || rec.init.Topic != "balance" || rec.init.Escalate {
		t.Errorf("init payload = %+v", rec.init)
	}
	if rec.final != "Check remaining data and minutes in the app or text BALANCE to 12345." {
		t.Errorf("final reply = %q", rec.final)
	}
}

// The done payload overrides the client-side token accumulation.
func TestStreamDoneAuthority(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter) {
		fmt.Fprint(w, "event: init\ndata: {\"session_id\":\"s1\",\"suggestions\":[],\"topic\":\"unknown\",\"escalate\":false,\"engine\":\"model\"}\n\n")
		fmt.Fprint(w, "event: token\ndata: client saw this\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"reply\":\"server says otherwise\"}\n\n")
	})
	defer srv.Close()

	rec := &recording{}
	if err := New(srv.URL).Stream(context.Background(), model.ChatRequest{Message: "hi"}, rec.handlers()); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if rec.final != "server says otherwise" {
		t.Errorf("final = %q, want the done payload to win", rec.final)
	}
}

func TestStreamSkipsMalformedInit(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter) {
		fmt.Fprint(w, "event: init\ndata: {broken json\n\n")
		fmt.Fprint(w, "event: token\ndata: still fine\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"reply\":\"still fine\"}\n\n")
	})
	defer srv.Close()

	rec := &recording{}
	if err := New(srv.URL).Stream(context.Background(), model.ChatRequest{Message: "hi"}, rec.handlers()); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	want := []string{"token", "done"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want malformed init skipped: %v", rec.calls, want)
	}
}

func TestStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	rec := &recording{}
	err := New(srv.URL).Stream(context.Background(), model.ChatRequest{}, rec.handlers())
	if err == nil {
		t.Fatal("expected error for 400 status")
	}
	if len(rec.calls) != 1 || rec.calls[0] != "error" {
		t.Errorf("calls = %v, want only error", rec.calls)
	}
}

func TestStreamTruncated(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter) {
		fmt.Fprint(w, "event: init\ndata: {\"session_id\":\"s1\",\"suggestions\":[],\"topic\":\"unknown\",\"escalate\":false,\"engine\":\"model\"}\n\n")
		fmt.Fprint(w, "event: token\ndata: partial\n\n")
		// Connection ends without a done event.
	})
	defer srv.Close()

	rec := &recording{}
	err := New(srv.URL).Stream(context.Background(), model.ChatRequest{Message: "hi"}, rec.handlers())
	if !errors.Is(err, ErrStreamTruncated) {
		t.Fatalf("error = %v, want ErrStreamTruncated", err)
	}
	want := []string{"init", "token", "error"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestStreamCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := streamServer(t, func(w http.ResponseWriter) {
		fmt.Fprint(w, "event: init\ndata: {\"session_id\":\"s1\",\"suggestions\":[],\"topic\":\"unknown\",\"escalate\":false,\"engine\":\"model\"}\n\n")
		w.(http.Flusher).Flush()
		<-block
	})
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recording{}
	recHandlers := rec.handlers()
	recHandlers.OnInit = func(sse.InitPayload) {
		rec.calls = append(rec.calls, "init")
		cancel()
	}

	err := New(srv.URL).Stream(ctx, model.ChatRequest{Message: "hi"}, recHandlers)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if rec.err == nil {
		t.Error("OnError must be invoked on cancellation")
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"reply":"hi","suggestions":["Show plan options"],"topic":"unknown","escalate":false,"session_id":"abc","engine":"rule-based"}`)
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Chat(context.Background(), model.ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.SessionID != "abc" || resp.Engine != "rule-based" {
		t.Errorf("response = %+v", resp)
	}
}

func TestScenarios(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"scenarios":[{"id":"scenario_001_esim_setup","name":"eSIM setup","topic":"device"}]}`)
	}))
	defer srv.Close()

	scenarios, err := New(srv.URL).Scenarios(context.Background())
	if err != nil {
		t.Fatalf("Scenarios() error = %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].ID != "scenario_001_esim_setup" {
		t.Errorf("scenarios = %+v", scenarios)
	}
}
