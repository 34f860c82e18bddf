// Package calendar provides a client for interacting with the Google
// Calendar API.
//
// It is the calendar-access collaborator of the slot engine: it queries
// freebusy data, converts it into busy intervals the engine understands,
// and books events for chosen slots (optionally with a Google Meet link
// and attendee invitations).
//
// The client supports multi-account authentication using the Google
// OAuth2 flow via the google.TokenProvider abstraction.
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := calendar.NewClient(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	slots, err := client.SuggestSlots(ctx, req, []string{"primary"})
//	if err != nil {
//	    log.Fatal(err)
//	}
package calendar
