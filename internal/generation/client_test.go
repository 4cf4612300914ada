package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStructured_OK(t *testing.T) {
	var got Request
	p := ProviderFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return `{"distortions":[],"risk_level":"düşük","recommendations":["Yürüyüş yap"]}`, nil
	})

	c := NewClient(p, Options{StructuredTemperature: 0, FreeformTemperature: 0.7}, discardLogger())
	res := c.Structured(context.Background(), "system", "Analiz et:\nmetin")

	if res.Kind != KindOK {
		t.Fatalf("expected KindOK, got %s (%v)", res.Kind, res.Err)
	}
	if res.Analysis.RiskLevel != extractor.RiskLow {
		t.Errorf("expected risk low, got %q", res.Analysis.RiskLevel)
	}
	if !got.JSON {
		t.Error("expected JSON mode on structured request")
	}
	if got.System != "system" || got.MaxTokens != 1000 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestStructured_RawTextOnBindFailure(t *testing.T) {
	p := ProviderFunc(func(context.Context, Request) (string, error) {
		return "Üzgünüm, bu metni analiz edemiyorum.", nil
	})

	c := NewClient(p, Options{}, discardLogger())
	res := c.Structured(context.Background(), "", "x")

	if res.Kind != KindRawText {
		t.Fatalf("expected KindRawText, got %s", res.Kind)
	}
	if res.Raw != "Üzgünüm, bu metni analiz edemiyorum." {
		t.Errorf("expected raw text to be carried, got %q", res.Raw)
	}
	var be *BindError
	if !errors.As(res.Err, &be) || be.Raw != res.Raw {
		t.Errorf("expected BindError with raw text, got %v", res.Err)
	}
	if !errors.Is(res.Err, extractor.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch in chain, got %v", res.Err)
	}
}

func TestStructured_ErrorOnTransportFailure(t *testing.T) {
	p := ProviderFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("connection refused")
	})

	res := NewClient(p, Options{}, discardLogger()).Structured(context.Background(), "", "x")
	if res.Kind != KindError {
		t.Fatalf("expected KindError, got %s", res.Kind)
	}
	if !errors.Is(res.Err, ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", res.Err)
	}
}

func TestFreeform(t *testing.T) {
	var got Request
	p := ProviderFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "serbest metin", nil
	})

	c := NewClient(p, Options{FreeformTemperature: 0.3, MaxTokens: 500}, discardLogger())
	text, err := c.Freeform(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "serbest metin" {
		t.Errorf("unexpected text %q", text)
	}
	if got.JSON || got.Temperature != 0.3 || got.MaxTokens != 500 {
		t.Errorf("unexpected request %+v", got)
	}

	failing := ProviderFunc(func(context.Context, Request) (string, error) {
		return "", &StatusError{Provider: "test", StatusCode: http.StatusBadGateway, Message: "bad gateway"}
	})
	if _, err := NewClient(failing, Options{}, discardLogger()).Freeform(context.Background(), "p"); !errors.Is(err, ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestProviders_Get(t *testing.T) {
	providers := Providers{"openai": ProviderFunc(nil)}

	if _, err := providers.Get("openai"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := providers.Get("cohere"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	calls := 0
	p := ProviderFunc(func(context.Context, Request) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Provider: "test", StatusCode: http.StatusServiceUnavailable}
		}
		return "ok", nil
	})

	r := WithRetry(p, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, discardLogger())
	text, err := r.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" || calls != 3 {
		t.Errorf("expected ok after 3 calls, got %q after %d", text, calls)
	}
}

func TestWithRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	p := ProviderFunc(func(context.Context, Request) (string, error) {
		calls++
		return "", &StatusError{Provider: "test", StatusCode: http.StatusUnauthorized}
	})

	r := WithRetry(p, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, discardLogger())
	if _, err := r.Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single call for 401, got %d", calls)
	}
}

func TestWithRetry_Bounded(t *testing.T) {
	calls := 0
	p := ProviderFunc(func(context.Context, Request) (string, error) {
		calls++
		return "", &StatusError{Provider: "test", StatusCode: http.StatusInternalServerError}
	})

	r := WithRetry(p, RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, discardLogger())
	if _, err := r.Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected error after retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
}

func TestWithRetry_PerAttemptTimeout(t *testing.T) {
	calls := 0
	p := ProviderFunc(func(ctx context.Context, _ Request) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "second", nil
	})

	r := WithRetry(p, RetryPolicy{MaxRetries: 1, Timeout: 20 * time.Millisecond, BaseDelay: time.Millisecond}, discardLogger())
	text, err := r.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "second" {
		t.Errorf("expected second attempt to answer, got %q", text)
	}
}

func TestWithRetry_CancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := ProviderFunc(func(context.Context, Request) (string, error) {
		calls++
		cancel()
		return "", &StatusError{Provider: "test", StatusCode: http.StatusBadGateway}
	})

	r := WithRetry(p, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, discardLogger())
	if _, err := r.Complete(ctx, Request{}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retry after cancellation, got %d calls", calls)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 503}, true},
		{&StatusError{StatusCode: 400}, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := Transient(tt.err); got != tt.want {
			t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
