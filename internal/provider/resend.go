package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

const (
	defaultResendTimeout = 10 * time.Second
	resendEmailsPath     = "/emails"
)

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// ResendProvider sends email through a Resend-compatible HTTP API.
type ResendProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewResendProvider(baseURL string, apiKey string) (*ResendProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultResendTimeout)
	client.SetRetryCount(0)

	return NewResendProviderWithClient(baseURL, apiKey, client)
}

func NewResendProviderWithClient(baseURL string, apiKey string, client *resty.Client) (*ResendProvider, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("email provider base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid email provider base url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("email provider api key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultResendTimeout)
	}
	client.SetRetryCount(0)

	return &ResendProvider{
		client:   client,
		endpoint: trimmedBase + resendEmailsPath,
		apiKey:   strings.TrimSpace(apiKey),
	}, nil
}

func (p *ResendProvider) Send(ctx context.Context, email domain.Email) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}

	reqBody := resendRequest{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		ReplyTo: email.ReplyTo,
	}

	var result resendResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&result).
		Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			MessageID:  strings.TrimSpace(result.ID),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(response.String()),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
