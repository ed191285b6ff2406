package translate

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is a public mirror of the Lingva API.
	DefaultBaseURL = "https://lingva-translate-eta.vercel.app/api/v1"
	// DefaultTimeout bounds one request to the Lingva API.
	DefaultTimeout = 10 * time.Second
	// autoLanguage is the pseudo-language Lingva uses for source detection.
	autoLanguage = "auto"
)

// languagesResponse is the body of GET /languages.
type languagesResponse struct {
	Languages []Language `json:"languages"`
}

// errorResponse is the body Lingva returns for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// LingvaClient talks to a Lingva Translate instance.
type LingvaClient struct {
	client *resty.Client
}

// NewLingvaClient creates a client for the Lingva instance at baseURL.
//
// Arguments:
//   - baseURL: The API root, for example DefaultBaseURL. Empty selects DefaultBaseURL.
//   - timeout: The total timeout of one request. Zero selects DefaultTimeout.
//
// Returns:
//   - *LingvaClient: The client.
//
// Example Usage:
// ```go
//
//	client := translate.NewLingvaClient(translate.DefaultBaseURL, 5*time.Second)
//	resp, err := client.Translate(ctx, "en", "es", "dog")
//
// ```
func NewLingvaClient(baseURL string, timeout time.Duration) *LingvaClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &LingvaClient{client: client}
}

// Translate translates text from source to target with GET /{source}/{target}/{text}.
func (c *LingvaClient) Translate(ctx context.Context, source, target, text string) (*TranslationResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var out TranslationResponse
	var apiErr errorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"source": source,
			"target": target,
			"text":   text,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/{source}/{target}/{text}")
	if err != nil {
		return nil, errors.Wrap(err, "translate request failed")
	}
	if resp.IsError() {
		return nil, statusError(resp, apiErr.Error)
	}
	return &out, nil
}

// SupportedLanguages fetches the languages of the instance with GET /languages.
// The "auto" pseudo-language is left out.
func (c *LingvaClient) SupportedLanguages(ctx context.Context) ([]Language, error) {
	var out languagesResponse
	var apiErr errorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/languages")
	if err != nil {
		return nil, errors.Wrap(err, "languages request failed")
	}
	if resp.IsError() {
		return nil, statusError(resp, apiErr.Error)
	}

	languages := make([]Language, 0, len(out.Languages))
	for _, l := range out.Languages {
		if l.Code == autoLanguage {
			continue
		}
		languages = append(languages, l)
	}
	return languages, nil
}

func statusError(resp *resty.Response, message string) error {
	if message == "" {
		message = strings.TrimSpace(resp.String())
	}
	return errors.Errorf("lingva returned %d: %s", resp.StatusCode(), message)
}
