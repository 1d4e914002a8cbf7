package ledger

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

type LoginResult struct {
	Message    string
	Credential string
}

// Login exchanges email and password for a credential. The ledger may name
// the credential either token or credential.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	in := map[string]string{"email": strings.TrimSpace(email), "password": password}
	var out struct {
		Message    string `json:"message"`
		Token      string `json:"token"`
		Credential string `json:"credential"`
	}
	if err := c.do(ctx, "login", "POST", "/user/login", in, false, &out); err != nil {
		return LoginResult{}, err
	}
	cred := out.Token
	if cred == "" {
		cred = out.Credential
	}
	if cred == "" {
		return LoginResult{}, &NetworkError{Op: "login", Err: errNoCredential}
	}
	return LoginResult{Message: out.Message, Credential: cred}, nil
}

// Register creates an account and returns the ledger's message.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	in := map[string]string{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, "register", "POST", "/user/register", in, false, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Account(ctx context.Context) (core.Account, error) {
	var out struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.do(ctx, "account", "GET", "/api/account", nil, true, &out); err != nil {
		return core.Account{}, err
	}
	return core.Account{Username: out.Username, Email: out.Email}, nil
}

// UpdateAccount sends the profile; a blank password is left out so the
// ledger keeps the current one.
func (c *Client) UpdateAccount(ctx context.Context, u core.AccountUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	in := map[string]string{
		"username": strings.TrimSpace(u.Username),
		"email":    strings.TrimSpace(u.Email),
	}
	if u.ChangesPassword() {
		in["password"] = u.Password
	}
	return c.do(ctx, "account.update", "PUT", "/api/account", in, true, nil)
}
