// Package notify delivers single-use tokens to users out of band.
package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Message is one outgoing notification. Token is a bearer secret.
type Message struct {
	To      string
	Purpose models.Purpose
	Token   string
}

// Notifier sends a Message. Implementations must not log Token.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var linkPaths = map[models.Purpose]string{
	models.PurposePasswordReset:     "/reset-password",
	models.PurposeEmailVerification: "/verify-email",
}

// Link builds the URL the user follows to redeem token.
func Link(baseURL string, purpose models.Purpose, token string) string {
	path, ok := linkPaths[purpose]
	if !ok {
		path = "/" + strings.ReplaceAll(string(purpose), "_", "-")
	}
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}
