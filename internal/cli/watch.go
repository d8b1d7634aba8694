package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"interviewroom/internal/infrastructure/distributed"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print call status events published by running coordinators",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			client := rt.repos.RedisClient()
			if client == nil {
				return fmt.Errorf("watch needs redis; set redis.enabled")
			}

			bus := distributed.NewEventBus(client, rt.cfg.Redis.StatusChannel, uuid.NewString(), uuid.NewString, rt.logger.Sugar().Named("events"))
			defer bus.Close()

			out := cmd.OutOrStdout()
			printf(cmd.ErrOrStderr(), "watching %s\n", rt.cfg.Redis.StatusChannel)
			err = bus.Subscribe(ctx, true, func(e *distributed.Event) error {
				printf(out, "%s\n", describeEvent(e))
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func describeEvent(e *distributed.Event) string {
	st := e.Status
	parts := []string{
		e.Timestamp.Local().Format(time.TimeOnly),
		string(e.Type),
		"meeting=" + string(e.MeetingID),
		"state=" + string(st.State),
		fmt.Sprintf("remotes=%d", len(st.Remotes)),
	}
	if st.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%q", st.Error))
	}
	if len(st.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("warnings=%q", strings.Join(st.Warnings, "; ")))
	}
	return strings.Join(parts, " ")
}
