package client

import (
	"context"
	"errors"
)

const (
	MessageServer       = "Our AI is taking a moment. Please try again."
	MessageTimeout      = "The request took too long. Please try again — it usually works on the second attempt."
	MessageConnectivity = "Please check your internet connection and try again."
	MessageGeneric      = "Something went wrong. Please try again."
)

// FriendlyMessage maps an error from Generate to a message fit for display.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	var serverErr *ServerError
	switch {
	case errors.Is(err, ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return MessageTimeout
	case errors.Is(err, ErrUnreachable):
		return MessageConnectivity
	case errors.As(err, &serverErr) && serverErr.StatusCode >= 500:
		return MessageServer
	default:
		return MessageGeneric
	}
}
