package models

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Platform — платформа видеовстреч.
type Platform string

const (
	PlatformGoogleMeet Platform = "google_meet"
	PlatformZoom       Platform = "zoom"
)

// ParsePlatform проверяет, что строка является известной платформой.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformGoogleMeet, PlatformZoom:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// LinkPending сохраняется вместо ссылки, если платформа ещё не выдала её.
const LinkPending = "pending"

// Operation задаёт режим ManageMeeting.
type Operation string

const (
	OpGetOrCreate Operation = "get_or_create"
	OpCreate      Operation = "create"
	OpGet         Operation = "get"
)

// ParseOperation возвращает OpGetOrCreate для пустой строки.
func ParseOperation(s string) (Operation, error) {
	switch o := Operation(s); o {
	case "":
		return OpGetOrCreate, nil
	case OpGetOrCreate, OpCreate, OpGet:
		return o, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// Meeting — встреча на гражданскую дату. На одну дату существует не больше одной встречи.
type Meeting struct {
	ID            int64      `json:"id"`
	MeetingDate   civil.Date `json:"meeting_date"`
	Platform      Platform   `json:"platform"`
	MeetingLink   string     `json:"meeting_link"`
	HostLink      string     `json:"host_link,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	RemoteEventID string     `json:"remote_event_id"`
	CreatedBy     string     `json:"created_by"`
	IsDefault     bool       `json:"is_default"`
	Attendees     []Attendee `json:"attendees"`
}

// LinkIsPending сообщает, что ссылку нужно дозапросить у платформы.
func (m *Meeting) LinkIsPending() bool {
	return m.MeetingLink == "" || m.MeetingLink == LinkPending
}

// HasAttendee ищет участника по id пользователя или по email без учёта регистра.
func (m *Meeting) HasAttendee(userID, email string) bool {
	for _, a := range m.Attendees {
		if userID != "" && a.UserID == userID {
			return true
		}
		if email != "" && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}
