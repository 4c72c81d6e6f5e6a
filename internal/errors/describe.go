package errors

// UserMessage is the title/description pair shown to the merchant.
type UserMessage struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Describe classifies err into a UserMessage. Nil and transient errors yield the zero value.
func Describe(err error) UserMessage {
	if err == nil || Is(err, ErrTransientNotReady) {
		return UserMessage{}
	}

	var validation *ValidationError
	if As(err, &validation) {
		return UserMessage{
			Title:       "Invalid transaction data",
			Description: validation.Error(),
		}
	}

	var remote *RemoteError
	hasRemote := As(err, &remote)
	vendor := ""
	if hasRemote {
		vendor = remote.Message
	}

	switch {
	case Is(err, ErrSessionNotFound), Is(err, ErrUnauthorized):
		return UserMessage{
			Title:       "Session expired",
			Description: "Your gateway credentials were refused. Sign in again and retry.",
		}
	case Is(err, ErrBearerRequired):
		return UserMessage{
			Title:       "Missing gateway token",
			Description: "This channel needs a gateway token. Retry the operation.",
		}
	case Is(err, ErrRemoteRejected):
		description := "The gateway rejected the transaction. Check the data and try again."
		if vendor != "" {
			description = vendor
		}
		return UserMessage{Title: "Transaction rejected", Description: description}
	case Is(err, ErrRemoteUnavailable):
		return UserMessage{
			Title:       "Gateway unavailable",
			Description: "The payment gateway could not be reached. Try again in a few minutes.",
		}
	case Is(err, ErrTimeout):
		return UserMessage{
			Title:       "Transaction not confirmed",
			Description: "We could not confirm the payment in time. Contact support before retrying.",
		}
	}
	return UserMessage{
		Title:       "Unexpected error",
		Description: "Something went wrong. Contact support if the problem persists.",
	}
}
