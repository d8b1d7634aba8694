package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/services"

	"github.com/spf13/cobra"
)

func NewMeetingsCmd(deps *Dependencies) *cobra.Command {
	var (
		user     domain.Identity
		userType string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "Print the meeting dashboard of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			user.UserType = domain.UserType(userType)
			switch user.UserType {
			case domain.UserTypeCandidate, domain.UserTypeEmployer:
			default:
				return fmt.Errorf("--type must be %q or %q", domain.UserTypeCandidate, domain.UserTypeEmployer)
			}

			meetings, err := rt.repos.CreateMeetingRepository()
			if err != nil {
				return err
			}
			formatter, err := services.NewFormatterFor(rt.cfg.Display.Language, rt.cfg.Display.TimeZone)
			if err != nil {
				return fmt.Errorf("display settings: %w", err)
			}
			feed := services.NewFeedService(meetings, services.SystemClock{}, formatter, directoryOptions(rt.cfg), rt.logger.Sugar().Named("feed"))

			dashboard, err := feed.Dashboard(cmd.Context(), user)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(dashboard)
			}
			printDashboard(out, dashboard)
			return nil
		},
	}

	cmd.Flags().StringVar((*string)(&user.ID), "user", "", "user id")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name, used for participant matching")
	cmd.Flags().StringVar(&user.Email, "email", "", "email, used for participant matching")
	cmd.Flags().StringVar(&userType, "type", string(domain.UserTypeCandidate), "candidate or employer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printDashboard(out io.Writer, d *services.Dashboard) {
	sections := []struct {
		title   string
		entries []services.FeedEntry
	}{
		{"Ongoing", d.Ongoing},
		{"Upcoming", d.Upcoming},
		{"Past", d.Past},
	}

	for i, s := range sections {
		if i > 0 {
			printf(out, "\n")
		}
		printf(out, "%s (%d)\n", s.title, len(s.entries))
		if len(s.entries) == 0 {
			continue
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		printf(tw, "ID\tTITLE\tSTARTS\tDURATION\tSTATE\tHOST\n")
		for _, e := range s.entries {
			state := string(e.State)
			if e.State == domain.StateScheduled {
				state = "in " + e.TimeRemaining
			}
			printf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Meeting.ID, e.Meeting.Title, e.StartsAt, e.Duration, state, e.Host)
		}
		_ = tw.Flush()
	}
}
