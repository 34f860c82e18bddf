package google

// DefaultOAuthScopes are the Google OAuth scopes slotwise requires.
//
// The scopes provide access to:
//   - Gmail: read, modify (mark as read), send (reply with suggestions)
//   - Google Calendar: freebusy queries and event creation
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required to resolve the user's email)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Gmail scopes
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.send",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",
}
