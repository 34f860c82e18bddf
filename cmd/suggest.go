package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/google"
	"github.com/slotwise/slotwise/internal/schedule"
	"github.com/slotwise/slotwise/internal/store"
)

func newSuggestCmd() *cobra.Command {
	var (
		account     string
		dbPath      string
		duration    int
		days        int
		workStart   string
		workEnd     string
		timezone    string
		grid        int
		maxResults  int
		calendarIDs []string
		anchorStr   string
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest free meeting slots from your calendar",
		Long: `Query Google Calendar availability and print free meeting slots
within your working hours.

Busy times are taken from the free/busy status of the given calendars
(the primary calendar by default). Slots start on a configurable grid,
e.g. a 30 minute grid yields starts on the hour and half hour.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := schedule.ParseWallClock(workStart)
			if err != nil {
				return fmt.Errorf("invalid --work-start: %w", err)
			}
			we, err := schedule.ParseWallClock(workEnd)
			if err != nil {
				return fmt.Errorf("invalid --work-end: %w", err)
			}

			loc := time.Local
			if timezone != "" {
				if loc, err = time.LoadLocation(timezone); err != nil {
					return fmt.Errorf("invalid --timezone: %w", err)
				}
			}

			anchor := time.Now()
			if anchorStr != "" {
				if anchor, err = time.ParseInLocation(time.RFC3339, anchorStr, loc); err != nil {
					return fmt.Errorf("invalid --anchor, expected RFC3339: %w", err)
				}
			}

			ctx := cmd.Context()

			var client *calendar.Client
			if dbPath != "" {
				st, err := store.New(dbPath)
				if err != nil {
					return fmt.Errorf("failed to open store: %w", err)
				}
				defer st.Close()
				provider := google.NewStoreTokenProvider(st)
				client, err = calendar.NewClientForAccountWithProvider(ctx, account, provider)
				if err != nil {
					return fmt.Errorf("failed to create Calendar client for account %s: %w", account, err)
				}
			} else {
				client, err = calendar.NewClientForAccount(ctx, account)
				if err != nil {
					return fmt.Errorf("failed to create Calendar client for account %s: %w", account, err)
				}
			}

			req := schedule.Request{
				Anchor:      anchor,
				Duration:    time.Duration(duration) * time.Minute,
				HorizonDays: days,
				WorkStart:   ws,
				WorkEnd:     we,
				Location:    loc,
				GridMinutes: grid,
				MaxResults:  maxResults,
			}

			slots, err := client.SuggestSlots(ctx, req, calendarIDs)
			if err != nil {
				return fmt.Errorf("failed to compute slots: %w", err)
			}

			if len(slots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No free slots found in the requested window.")
				return nil
			}

			for i, slot := range slots {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, slot)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite database holding tokens. Defaults to the file token cache.")
	cmd.Flags().IntVar(&duration, "duration", 30, "Meeting duration in minutes")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to search, starting at the anchor day")
	cmd.Flags().StringVar(&workStart, "work-start", "09:00", "Start of working hours (HH:MM)")
	cmd.Flags().StringVar(&workEnd, "work-end", "17:00", "End of working hours (HH:MM)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for working hours and display (default: local)")
	cmd.Flags().IntVar(&grid, "grid", 30, "Slot start grid in minutes")
	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of slots to print (default: 3)")
	cmd.Flags().StringSliceVar(&calendarIDs, "calendar", nil, "Calendar IDs to consult for busy times (default: primary)")
	cmd.Flags().StringVar(&anchorStr, "anchor", "", "Search from this RFC3339 time instead of now")

	return cmd
}
