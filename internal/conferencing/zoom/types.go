package zoom

// Тип встречи Zoom «запланированная».
const scheduledMeeting = 2

type meetingSettings struct {
	ApprovalType                 int  `json:"approval_type"`
	JoinBeforeHost               bool `json:"join_before_host"`
	RegistrantsEmailNotification bool `json:"registrants_email_notification"`
}

type createMeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone,omitempty"`
	Agenda    string          `json:"agenda,omitempty"`
	Settings  meetingSettings `json:"settings"`
}

type meetingResponse struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	Agenda    string `json:"agenda"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	JoinURL   string `json:"join_url"`
	StartURL  string `json:"start_url"`
}

type listMeetingsResponse struct {
	NextPageToken string            `json:"next_page_token"`
	Meetings      []meetingResponse `json:"meetings"`
}

type registrant struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

type listRegistrantsResponse struct {
	NextPageToken string       `json:"next_page_token"`
	Registrants   []registrant `json:"registrants"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
