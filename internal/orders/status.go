package orders

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Status is an open set managed by the store admins. Only Pendiente is
// assigned by this service.
type Status string

const StatusPending Status = "Pendiente"

const maxStatusLen = 50

var ErrInvalidStatus = errors.New("invalid order status")

func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxStatusLen {
		return "", ErrInvalidStatus
	}
	return Status(s), nil
}
