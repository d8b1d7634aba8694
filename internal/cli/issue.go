package cli

import (
	"fmt"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/pkg/validation"

	"github.com/spf13/cobra"
)

// NewIssueCredentialCmd signs a development call credential for a meeting's channel.
func NewIssueCredentialCmd(deps *Dependencies) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "issue-credential <meeting-id>",
		Short: "Sign a development session credential for a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID := args[0]
			if err := validation.ValidateMeetingID(meetingID); err != nil {
				return err
			}

			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.cfg.IsProduction() {
				return fmt.Errorf("issuing credentials is disabled in production; the platform issues them")
			}

			meetings, err := rt.repos.CreateMeetingRepository()
			if err != nil {
				return err
			}
			meeting, err := meetings.GetMeeting(cmd.Context(), domain.MeetingID(meetingID))
			if err != nil {
				return err
			}

			auth := newAuthService(rt.cfg, rt.cfg.Auth.CredentialSecret)
			cred, err := auth.IssueCallCredential(meeting, domain.UserID(userID), ttl)
			if err != nil {
				return fmt.Errorf("sign credential: %w", err)
			}

			if save {
				store, persistent := rt.credentialStore()
				warnEphemeral(cmd, persistent)
				minutes := int(cred.ExpiresAt.Sub(cred.IssuedAt).Round(time.Minute) / time.Minute)
				store.Save(cmd.Context(), cred.Token, minutes)
			}

			printf(cmd.ErrOrStderr(), "channel %s, expires %s\n", meeting.Channel(), cred.ExpiresAt.Local().Format(time.RFC3339))
			printf(cmd.OutOrStdout(), "%s\n", cred.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "bind the credential to this user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "credential lifetime (default auth.credential_ttl)")
	cmd.Flags().BoolVar(&save, "save", false, "also store the credential")
	return cmd
}

// NewIssueIdentityCmd signs a bearer token for the HTTP API, for local testing without the platform.
func NewIssueIdentityCmd(deps *Dependencies) *cobra.Command {
	var (
		user     domain.Identity
		userType string
	)

	cmd := &cobra.Command{
		Use:   "issue-identity",
		Short: "Sign a development identity token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			user.UserType = domain.UserType(userType)
			if user.Email != "" {
				if err := validation.ValidateEmail(user.Email); err != nil {
					return err
				}
			}

			cfg, err := deps.loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("issuing identity tokens is disabled in production")
			}

			token, err := newAuthService(cfg, cfg.Auth.JWTSecret).IssueIdentityToken(user)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", token)
			return nil
		},
	}

	cmd.Flags().StringVar((*string)(&user.ID), "user", "", "user id")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&user.Email, "email", "", "email")
	cmd.Flags().StringVar(&userType, "type", string(domain.UserTypeCandidate), "candidate or employer")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
