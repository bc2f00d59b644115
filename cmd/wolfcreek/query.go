package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dpup/wolfcreekpass/server/internal/app"
	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/services"
)

func queryCommand(cfg *config.Config) *cobra.Command {
	var limit int

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect collected data",
	}
	queryCmd.PersistentFlags().IntVar(&limit, "limit", 0, "Maximum rows to show (0 uses the default)")

	// withQuery opens the store read-only for the duration of fn
	withQuery := func(cmd *cobra.Command, fn func(*services.QueryService) error) error {
		store, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(services.NewQueryService(store))
	}

	queryCmd.AddCommand(
		&cobra.Command{
			Use:   "cycles",
			Short: "List recent capture cycles",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(cmd, func(q *services.QueryService) error {
					cycles, err := q.Cycles(cmd.Context(), limit)
					if err != nil {
						return err
					}
					printCycles(cmd.OutOrStdout(), cycles)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cycle <cycle_id>",
			Short: "Print the full dashboard of one cycle as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(cmd, func(q *services.QueryService) error {
					d, err := q.Dashboard(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(d)
				})
			},
		},
		&cobra.Command{
			Use:   "recent",
			Short: "List the newest camera captures",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(cmd, func(q *services.QueryService) error {
					captures, err := q.Recent(cmd.Context(), limit)
					if err != nil {
						return err
					}
					printCaptures(cmd.OutOrStdout(), captures)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "routes",
			Short: "List routes with travel times and flags",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(cmd, func(q *services.QueryService) error {
					routes, err := q.Routes(cmd.Context())
					if err != nil {
						return err
					}
					printRoutes(cmd.OutOrStdout(), routes)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cameras",
			Short: "List known cameras",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(cmd, func(q *services.QueryService) error {
					cameras, err := q.Cameras(cmd.Context())
					if err != nil {
						return err
					}
					printCameras(cmd.OutOrStdout(), cameras)
					return nil
				})
			},
		},
	)
	return queryCmd
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printCycles(w io.Writer, cycles []model.CycleSummary) {
	tw := newTable(w)
	fmt.Fprintln(tw, "CYCLE\tCOMPLETED\tCAMERAS\tSNOW\tEVENTS\tTRAVEL")
	for _, c := range cycles {
		completed := "running"
		if c.CompletedAt != nil {
			completed = c.CompletedAt.Format("15:04:05")
		}
		travel := "-"
		if c.TravelTimeS != nil {
			travel = fmt.Sprintf("%d min", *c.TravelTimeS/60)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", c.CycleID, completed, c.CamerasProcessed, c.SnowCount, c.EventCount, travel)
	}
	_ = tw.Flush()
}

func printCaptures(w io.Writer, captures []services.CaptureView) {
	tw := newTable(w)
	fmt.Fprintln(tw, "CAPTURED\tCAMERA\tLOCATION\tSNOW\tCARS\tTRUCKS\tANIMALS\tNOTES")
	for _, c := range captures {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.CapturedAt.Format("2006-01-02 15:04"), c.CameraID, deref(c.Location),
			yesNo(c.HasSnow), yesNo(c.HasCar), yesNo(c.HasTruck), yesNo(c.HasAnimal), truncate(c.AnalysisNotes, 60))
	}
	_ = tw.Flush()
}

func printRoutes(w io.Writer, routes []model.Route) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ROUTE\tNAME\tDISTANCE\tDURATION\tCLOSURE\tCONDITIONS")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%.1f km\t%d min\t%t\t%t\n",
			r.RouteID, r.Name, float64(r.DistanceM)/1000, r.DurationS/60, r.HasClosure, r.HasConditions)
	}
	_ = tw.Flush()
}

func printCameras(w io.Writer, cameras []model.Camera) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tROADWAY\tDIRECTION\tLOCATION")
	for _, c := range cameras {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, deref(c.Roadway), deref(c.Direction), deref(c.Location))
	}
	_ = tw.Flush()
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return "?"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	s = firstLine(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

