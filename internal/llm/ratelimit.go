package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrRateLimited marks a provider response that asked the caller to slow down
// (HTTP 429 or RESOURCE_EXHAUSTED). Only this error is retried.
var ErrRateLimited = errors.New("llm provider rate limited the request")

// classifyError wraps provider rate-limit errors with ErrRateLimited and
// leaves every other error as a plain generation failure.
func classifyError(err error) error {
	if isRateLimitError(err) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("failed to generate content: %w", err)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPCode() == http.StatusTooManyRequests {
			return true
		}
		if st := apiErr.GRPCStatus(); st != nil && st.Code() == codes.ResourceExhausted {
			return true
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}

	var oaErr *openai.APIError
	if errors.As(err, &oaErr) && oaErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}

	return false
}
