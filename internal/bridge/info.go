package bridge

import (
	"context"
	"log/slog"
	"net/http"
)

// Info describes the bridge API server.
type Info struct {
	Title       string
	Description string
	Version     string
	Host        string
}

type infoResponse struct {
	Info struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Version     string `json:"version"`
	} `json:"info"`
	Host string `json:"host"`
}

// Info fetches the server description. It does not require credentials.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	c.logger.Info("getting bridge info")

	var raw infoResponse
	if err := c.doJSON(ctx, http.MethodGet, "/", nil, &raw, false); err != nil {
		return nil, err
	}

	return &Info{
		Title:       raw.Info.Title,
		Description: raw.Info.Description,
		Version:     raw.Info.Version,
		Host:        raw.Host,
	}, nil
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Email string `json:"email"`
}

// Register creates a new bridge account. The bridge answers with the email
// address that a confirmation was sent to.
func (c *Client) Register(ctx context.Context, user, pass string) (string, error) {
	c.logger.Info("registering account", slog.String("user", user))

	req := registerRequest{Email: user, Password: hashPassword(pass)}

	var raw registerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/users", req, &raw, false); err != nil {
		return "", err
	}

	if raw.Email == "" {
		return user, nil
	}

	return raw.Email, nil
}
