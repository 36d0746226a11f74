package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
)

const defaultWorkspaceAPIBaseURL = "https://api.workspace.example.com/v1"

// Client talks to the external workspace provider's account API. Both calls
// are idempotent: creating twice for the same user returns the existing
// account, deleting a nonexistent account is success.
type Client struct {
	APIBaseURL string
	APIToken   string

	HTTPClient *http.Client
}

// Account is the provider's account representation.
type Account struct {
	ExternalAccountID string `json:"id"`
	Email             string `json:"email"`
	Status            string `json:"status"`
}

type createAccountRequest struct {
	Reference string `json:"reference"`
	Email     string `json:"email"`
	Secret    string `json:"secret"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClientFromEnv builds a client from WORKSPACE_* environment settings.
func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("WORKSPACE_API_BASE_URL", defaultWorkspaceAPIBaseURL), "/"),
		APIToken:   strings.TrimSpace(env.GetEnv("WORKSPACE_API_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateAccount provisions an account for the given user. A conflict response
// means the account already exists; the existing account is looked up and
// returned instead of an error.
func (c *Client) CreateAccount(ctx context.Context, userID uint, email, secret string) (*Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return nil, errors.New("WORKSPACE_API_TOKEN is not configured")
	}

	body, err := json.Marshal(createAccountRequest{
		Reference: accountReference(userID),
		Email:     email,
		Secret:    secret,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/accounts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workspace create request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Already provisioned; resolve the existing account.
		return c.GetAccountByReference(ctx, userID)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var account Account
		if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
			return nil, fmt.Errorf("decoding workspace create response: %w", err)
		}
		return &account, nil
	default:
		return nil, readAPIError("create account", resp)
	}
}

// GetAccountByReference resolves the provider account linked to a local user.
func (c *Client) GetAccountByReference(ctx context.Context, userID uint) (*Account, error) {
	u := fmt.Sprintf("%s/accounts?reference=%s", c.APIBaseURL, url.QueryEscape(accountReference(userID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workspace lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readAPIError("lookup account", resp)
	}

	var accounts []Account
	if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("decoding workspace lookup response: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no workspace account for user %d", userID)
	}
	return &accounts[0], nil
}

// DeleteAccount permanently removes the provider account. A not-found
// response counts as success.
func (c *Client) DeleteAccount(ctx context.Context, externalAccountID string) error {
	if strings.TrimSpace(externalAccountID) == "" {
		return errors.New("external account id is required")
	}

	u := c.APIBaseURL + "/accounts/" + url.PathEscape(externalAccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("workspace delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return readAPIError("delete account", resp)
}

func accountReference(userID uint) string {
	return fmt.Sprintf("deskfox-%d", userID)
}

func readAPIError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Message != "" {
		return fmt.Errorf("workspace %s: %s (status %d)", op, ae.Message, resp.StatusCode)
	}
	return fmt.Errorf("workspace %s: unexpected status %d", op, resp.StatusCode)
}
