package classify

// MeetingIntent is the classifier's verdict on one email.
type MeetingIntent struct {
	IsMeetingSuggested bool            `json:"isMeetingSuggested"`
	Details            *MeetingDetails `json:"meetingDetails,omitempty"`
}

// MeetingDetails carries what the model extracted from the email.
type MeetingDetails struct {
	// Topic is the inferred reason for the meeting.
	Topic string `json:"topic"`

	// Attendees are the names mentioned as potential participants,
	// excluding the sender unless they name themselves.
	Attendees []string `json:"attendees"`

	// SuggestedTimes are the time expressions found in the email.
	SuggestedTimes []SuggestedTime `json:"suggestedTimes"`
}

// SuggestedTime is one time expression extracted from the email, kept
// as raw strings alongside the exact snippet they came from.
type SuggestedTime struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	RawText string `json:"rawText"`
}
