package api

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var userIDPattern = regexp.MustCompile(`(?i)^user_[a-z0-9_]{3,}$`)

// reservedTimeWindow is the explicitly unsupported time_window_minutes
// value (§4.1, §8 scenario 2).
const reservedTimeWindow = 123

// validationError is a single field-level validation failure, carrying the
// HTTP-facing code used to build errorResponse.
type validationError struct {
	Code    string
	Message string
}

func (e *validationError) Error() string { return e.Message }

func newValidationError(code, message string) *validationError {
	return &validationError{Code: code, Message: message}
}

// validateUserID accepts either the user_<alnum> convention or a valid UUID.
func validateUserID(userID string) error {
	if userIDPattern.MatchString(userID) {
		return nil
	}
	if _, err := uuid.Parse(userID); err == nil {
		return nil
	}
	return newValidationError("INVALID_USER_ID", "user_id must match ^user_[a-z0-9_]{3,}$ or be a valid UUID")
}

// validateFeedMessage checks one message against §6's enumerated rules.
func validateFeedMessage(m feedMessageRequest) error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}

	content := strings.TrimSpace(m.Content)
	if content == "" || utf8.RuneCountInString(content) > 280 {
		return newValidationError("INVALID_CONTENT", "content must be non-empty and at most 280 characters after trim")
	}

	if _, err := time.Parse(time.RFC3339, m.Timestamp); err != nil {
		return newValidationError("INVALID_TIMESTAMP", "timestamp must be RFC3339 with an explicit offset")
	}

	for _, h := range m.Hashtags {
		if len(h) < 2 || !strings.HasPrefix(h, "#") {
			return newValidationError("INVALID_HASHTAGS", "each hashtag must start with '#' and be at least 2 characters")
		}
	}

	if m.Reactions < 0 || m.Shares < 0 || m.Views < 0 {
		return newValidationError("INVALID_COUNTS", "reactions, shares, and views must be non-negative")
	}
	if m.Views < m.Reactions+m.Shares {
		return newValidationError("INVALID_COUNTS", "views must be at least reactions + shares")
	}

	return nil
}

// validateTimeWindow enforces the positive-integer and reserved-value rules.
func validateTimeWindow(minutes int) error {
	if minutes == reservedTimeWindow {
		return newValidationError("UNSUPPORTED_TIME_WINDOW", "Valor de janela temporal não suportado na versão atual")
	}
	if minutes <= 0 {
		return newValidationError("INVALID_TIME_WINDOW", "time_window_minutes must be a positive integer")
	}
	return nil
}

// validateBulkItem checks one fast-path item's user_id and correlation_id
// shape; everything else is assumed already computed by the caller (§4.3).
func validateBulkItem(item bulkItemRequest) error {
	if err := validateUserID(item.UserID); err != nil {
		return err
	}
	if item.CorrelationID != nil && len(*item.CorrelationID) > 64 {
		return newValidationError("INVALID_CORRELATION_ID", "correlation_id must be at most 64 characters")
	}
	return nil
}

func validateAnalyzeFeedRequest(req analyzeFeedRequest) error {
	hasMessages := len(req.Messages) > 0
	hasItems := len(req.Items) > 0

	if hasMessages == hasItems {
		return newValidationError("INVALID_REQUEST", "request must carry exactly one of messages or items")
	}

	if hasMessages {
		if err := validateTimeWindow(req.TimeWindowMinutes); err != nil {
			return err
		}
		for _, m := range req.Messages {
			if err := validateFeedMessage(m); err != nil {
				return err
			}
		}
		return nil
	}

	if len(req.Items) > 1000 {
		return newValidationError("BATCH_LIMIT_EXCEEDED", fmt.Sprintf("items exceeds the %d-item batch limit", 1000))
	}
	for _, item := range req.Items {
		if err := validateBulkItem(item); err != nil {
			return err
		}
	}
	return nil
}
