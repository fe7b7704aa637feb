package models

import "cloud.google.com/go/civil"

// MeetingReady публикуется планировщиком после подготовки встречи дня.
type MeetingReady struct {
	MeetingID   int64      `json:"meeting_id"`
	Date        civil.Date `json:"date"`
	Platform    Platform   `json:"platform"`
	MeetingLink string     `json:"meeting_link"`
	Attendees   int        `json:"attendees"`
}

// EnrollRequest — заявка на добавление пользователей во встречу даты Date.
type EnrollRequest struct {
	Date     civil.Date `json:"date"`
	UserIDs  []string   `json:"user_ids"`
	Platform Platform   `json:"platform,omitempty"`
}
