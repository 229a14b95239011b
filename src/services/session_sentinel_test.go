package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintSignalsDeterministic(t *testing.T) {
	signals := DeviceSignals{
		UserAgent:        "Mozilla/5.0",
		Language:         "pt-PT",
		Platform:         "Linux x86_64",
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Lisbon",
		CPUCount:         8,
	}

	first := FingerprintSignals(signals)
	second := FingerprintSignals(signals)

	assert.Equal(t, first, second)
	assert.Len(t, first, 16)
}

func TestFingerprintSignalsChangesWithDevice(t *testing.T) {
	base := DeviceSignals{UserAgent: "Mozilla/5.0", Timezone: "Europe/Lisbon"}
	changed := base
	changed.Timezone = "America/Sao_Paulo"

	assert.NotEqual(t, FingerprintSignals(base), FingerprintSignals(changed))
}

func TestResolveClientIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"203.0.113.7"}`))
	}))
	defer server.Close()

	sentinel := NewSessionSentinel(nil, server.URL, 2*time.Second, time.Minute)
	assert.Equal(t, "203.0.113.7", sentinel.ResolveClientIP(context.Background()))
}

func TestResolveClientIPMalformedAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"not-an-ip"}`))
	}))
	defer server.Close()

	sentinel := NewSessionSentinel(nil, server.URL, 2*time.Second, time.Minute)
	assert.Equal(t, UnknownIP, sentinel.ResolveClientIP(context.Background()))
}

func TestResolveClientIPBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sentinel := NewSessionSentinel(nil, server.URL, 2*time.Second, time.Minute)
	assert.Equal(t, UnknownIP, sentinel.ResolveClientIP(context.Background()))
}

func TestResolveClientIPTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	sentinel := NewSessionSentinel(nil, server.URL, 50*time.Millisecond, time.Minute)
	start := time.Now()
	ip := sentinel.ResolveClientIP(context.Background())

	assert.Equal(t, UnknownIP, ip)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSignalsForFallsBackToUserAgent(t *testing.T) {
	sentinel := NewSessionSentinel(nil, "http://invalid", time.Second, time.Minute)

	fallback := sentinel.signalsFor(1, "curl/8.0")
	assert.Equal(t, DeviceSignals{UserAgent: "curl/8.0"}, fallback)

	reported := DeviceSignals{UserAgent: "Mozilla/5.0", Platform: "MacIntel"}
	sentinel.RecordSignals(1, reported)
	assert.Equal(t, reported, sentinel.signalsFor(1, "curl/8.0"))
}

func TestTickSkipsWhenInFlight(t *testing.T) {
	sentinel := NewSessionSentinel(nil, "http://invalid", time.Second, time.Minute)

	sentinel.inFlight.Store(true)
	done := make(chan struct{})
	go func() {
		sentinel.tick() // must return immediately without touching the nil DB
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick did not skip while a check was in flight")
	}
}
