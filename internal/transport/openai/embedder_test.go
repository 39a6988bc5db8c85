package openai

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/waypointhq/ragcore/internal/domain"
)

func TestParseAPIError(t *testing.T) {
	t.Run("429 maps to rate limited", func(t *testing.T) {
		err := parseAPIError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests})
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("request error 429 maps to rate limited", func(t *testing.T) {
		err := parseAPIError(&openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests})
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("other statuses wrap provider error", func(t *testing.T) {
		err := parseAPIError(&openai.APIError{
			HTTPStatusCode: http.StatusInternalServerError,
			Message:        "upstream broke",
		})
		if !errors.Is(err, domain.ErrProviderError) {
			t.Fatalf("got %v", err)
		}
		if !strings.Contains(err.Error(), "upstream broke") {
			t.Errorf("message lost: %v", err)
		}
	})

	t.Run("detail field surfaced from body", func(t *testing.T) {
		err := parseAPIError(&openai.RequestError{
			HTTPStatusCode: http.StatusBadRequest,
			Body:           []byte(`{"detail": "dimension not supported"}`),
		})
		if !strings.Contains(err.Error(), "dimension not supported") {
			t.Errorf("detail lost: %v", err)
		}
	})

	t.Run("unknown errors wrap provider error", func(t *testing.T) {
		err := parseAPIError(errors.New("connection reset"))
		if !errors.Is(err, domain.ErrProviderError) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"quota hit"}`)); got != "quota hit" {
		t.Errorf("got %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("got %q", got)
	}
	if got := extractDetail([]byte(`{"error":"other shape"}`)); got != "" {
		t.Errorf("got %q", got)
	}
}
