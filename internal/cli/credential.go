package cli

import (
	"errors"
	"fmt"
	"time"

	"interviewroom/pkg/utils"
	"interviewroom/pkg/validation"

	"github.com/spf13/cobra"
)

var errNoCredential = errors.New("no valid session credential stored")

func NewCredentialCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the stored session credential",
		Long:  "The session credential admits this coordinator to the media channel. It is shared with a running server through Redis; without Redis it only lives for the command.",
	}
	cmd.AddCommand(newCredentialSaveCmd(deps))
	cmd.AddCommand(newCredentialShowCmd(deps))
	cmd.AddCommand(newCredentialClearCmd(deps))
	return cmd
}

func newCredentialSaveCmd(deps *Dependencies) *cobra.Command {
	var ttlMinutes int

	cmd := &cobra.Command{
		Use:   "save <token>",
		Short: "Store a session credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := args[0]
			if err := validation.ValidateCredentialToken(token); err != nil {
				return err
			}
			if err := validation.ValidateTTLMinutes(ttlMinutes); err != nil {
				return err
			}

			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			store, persistent := rt.credentialStore()
			warnEphemeral(cmd, persistent)

			store.Save(cmd.Context(), token, ttlMinutes)
			cred, ok := store.Credential(cmd.Context())
			if !ok {
				return fmt.Errorf("credential was not stored")
			}
			printf(cmd.OutOrStdout(), "Saved credential, expires %s\n", cred.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&ttlMinutes, "ttl", 60, "lifetime in minutes")
	return cmd
}

func newCredentialShowCmd(deps *Dependencies) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			store, persistent := rt.credentialStore()
			warnEphemeral(cmd, persistent)

			cred, ok := store.Credential(cmd.Context())
			if !ok {
				return errNoCredential
			}

			token := cred.Token
			if !reveal {
				token = utils.MaskSecret(token, 4)
			}
			out := cmd.OutOrStdout()
			printf(out, "Token:      %s\n", token)
			if !cred.IssuedAt.IsZero() {
				printf(out, "Issued at:  %s\n", cred.IssuedAt.Local().Format(time.RFC3339))
			}
			printf(out, "Expires at: %s (in %s)\n",
				cred.ExpiresAt.Local().Format(time.RFC3339),
				utils.Remaining(cred.ExpiresAt, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the full token")
	return cmd
}

func newCredentialClearCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			store, persistent := rt.credentialStore()
			warnEphemeral(cmd, persistent)

			store.Clear(cmd.Context())
			printf(cmd.OutOrStdout(), "Credential cleared\n")
			return nil
		},
	}
}

func warnEphemeral(cmd *cobra.Command, persistent bool) {
	if !persistent {
		printf(cmd.ErrOrStderr(), "warning: redis is disabled, the credential store is local to this command\n")
	}
}

