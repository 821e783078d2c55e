// Package users checks acting users against the external user service.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrUserNotFound is returned when the user service does not know the user.
var ErrUserNotFound = errors.New("user not found")

// Directory is a client of the user service, which serves GET {baseURL}/{id}.
type Directory struct {
	client *resty.Client
	logger *zap.Logger
}

// NewDirectory creates a Directory for the user service at baseURL,
// e.g. "http://localhost:8080/users".
func NewDirectory(baseURL string, timeout time.Duration, logger *zap.Logger) *Directory {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &Directory{
		client: client,
		logger: logger,
	}
}

// Exists reports whether the user service knows userID.
func (d *Directory) Exists(ctx context.Context, userID string) (bool, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		Get("/{id}")
	if err != nil {
		return false, fmt.Errorf("error making request to user API: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("user API returned unexpected status: %d", resp.StatusCode())
	}
}

// Verify returns ErrUserNotFound unless userID exists.
func (d *Directory) Verify(ctx context.Context, userID string) error {
	exists, err := d.Exists(ctx, userID)
	if err != nil {
		d.logger.Error("error validating user", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

func (d *Directory) Close() error {
	return d.client.Close()
}
