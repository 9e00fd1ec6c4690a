// Package calendar is a thin client over the Google Calendar v3 API used by
// the synchronization engine.
//
// Every call fetches a fresh access token from a google.TokenSource. When the
// API answers 401 the call is repeated exactly once with a newly minted token;
// any other failure is returned to the caller wrapped but otherwise unchanged.
// A nil token from the source is reported as ErrNotConnected.
//
//	client := calendar.NewClient(calendar.Config{
//		Tokens:   provider,
//		Settings: store,
//	})
//	calendarID, err := client.ResolveCalendarID(ctx)
//	events, malformed, err := client.ListEvents(ctx, calendarID, calendar.TimeRange{Start: from, End: to})
package calendar
