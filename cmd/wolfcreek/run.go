package main

import (
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpup/wolfcreekpass/server/internal/app"
	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/services"
)

func runCommand(cfg *config.Config) *cobra.Command {
	var (
		once    bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run capture cycles on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				cfg.Capture.Workers = workers
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			monitor, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer monitor.Close()

			if once {
				res, err := monitor.Scheduler.RunOnce(ctx)
				if res != nil {
					printCycleResult(cmd.OutOrStdout(), res)
				}
				return err
			}

			if err := monitor.Scheduler.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			log.Printf("Shutting down")
			monitor.Scheduler.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single cycle and exit")
	cmd.Flags().IntVar(&workers, "workers", 1, "Cameras processed concurrently")
	return cmd
}

// printCycleResult writes the summary and stage table of a finished cycle
func printCycleResult(w io.Writer, res *services.CycleResult) {
	s := res.Summary
	fmt.Fprintf(w, "Cycle %s: %s\n", s.CycleID, res.Status())
	fmt.Fprintf(w, "  cameras processed: %d\n  snow detected:     %d\n  events:            %d\n",
		s.CamerasProcessed, s.SnowCount, s.EventCount)
	if s.TravelTimeS != nil {
		fmt.Fprintf(w, "  travel time:       %d min\n", *s.TravelTimeS/60)
	}
	for _, r := range res.ClosedRoutes() {
		fmt.Fprintf(w, "  CLOSED:            %s\n", r.Name)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSTAGE\tSTATUS\tDURATION\tERROR")
	for _, st := range res.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Stage, st.Status, st.Duration.Round(time.Millisecond), firstLine(st.Error))
	}
	_ = tw.Flush()
}
