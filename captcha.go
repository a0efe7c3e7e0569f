package site

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const recaptchaEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// CaptchaVerifier checks a captcha response submitted with a form.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) (bool, error)
}

// RecaptchaVerifier verifies Google reCAPTCHA responses.
type RecaptchaVerifier struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

// NewRecaptchaVerifier creates a verifier for the given secret key.
func NewRecaptchaVerifier(secret string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		Secret:   secret,
		Endpoint: recaptchaEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the response token to the siteverify endpoint. An empty
// response is rejected without a request.
func (v *RecaptchaVerifier) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	if response == "" {
		return false, nil
	}
	form := url.Values{
		"secret":   {v.Secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := v.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("site: recaptcha: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("site: recaptcha: status %d", resp.StatusCode)
	}
	var r recaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return false, fmt.Errorf("site: recaptcha: decode: %w", err)
	}
	return r.Success, nil
}
