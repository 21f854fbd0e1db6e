package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"newspulse/internal/domain"
	"newspulse/internal/pipeline"
	"newspulse/internal/scheduler"
)

const dateLayout = "2006-01-02"

type windowFlags struct {
	start string
	end   string
	days  int
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.start, "start", "", "First day of the date window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.end, "end", "", "Last day of the date window (YYYY-MM-DD), inclusive")
	cmd.Flags().IntVar(&w.days, "days", scheduler.DefaultWindowDays, "Window length in days when --start is not set")
}

// window resolves the flags. The end day is included up to its last second.
func (w *windowFlags) window(now time.Time) (domain.DateRange, error) {
	if w.start == "" && w.end == "" {
		return scheduler.Window(now.UTC(), w.days), nil
	}

	if w.start == "" || w.end == "" {
		return domain.DateRange{}, errors.New("--start and --end must be set together")
	}

	start, err := time.ParseInLocation(dateLayout, w.start, time.UTC)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("parse --start: %w", err)
	}

	end, err := time.ParseInLocation(dateLayout, w.end, time.UTC)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("parse --end: %w", err)
	}

	return domain.DateRange{Start: start, End: end.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

func harvestCmd(a *app) *cobra.Command {
	var (
		query   string
		output  string
		onlyNew bool
		w       windowFlags
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Write the news feed records for a query to a CSV table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := w.window(time.Now())
			if err != nil {
				return err
			}

			runner, err := a.runner(cmd.Context(), "")
			if err != nil {
				return err
			}

			return runner.Harvest(cmd.Context(), pipeline.HarvestRequest{
				Query:   query,
				Window:  window,
				Output:  output,
				OnlyNew: onlyNew,
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Search terms")
	cmd.Flags().StringVarP(&output, "out", "o", pipeline.HarvestFile, "Output CSV path")
	cmd.Flags().BoolVar(&onlyNew, "only-new", false, "Skip URLs saved by earlier harvests")
	w.register(cmd)
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

// tableCmd builds a command that turns one CSV table into another.
func tableCmd(
	use string,
	short string,
	defaultIn string,
	defaultOut string,
	defaultColumn string,
	run func(cmd *cobra.Command, in string, out string, column string) error,
) *cobra.Command {
	var in, out, column string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, in, out, column)
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", defaultIn, "Input CSV path")
	cmd.Flags().StringVarP(&out, "out", "o", defaultOut, "Output CSV path")
	cmd.Flags().StringVarP(&column, "column", "c", defaultColumn, "Input column")

	return cmd
}

func extractCmd(a *app) *cobra.Command {
	return tableCmd("extract", "Add the article text of every URL",
		pipeline.HarvestFile, pipeline.ArticlesFile, pipeline.ColumnURL,
		func(cmd *cobra.Command, in string, out string, column string) error {
			runner, err := a.runner(cmd.Context(), "")
			if err != nil {
				return err
			}

			return runner.Extract(cmd.Context(), in, out, column)
		})
}

func summarizeCmd(a *app) *cobra.Command {
	var newColumn, topic string

	cmd := tableCmd("summarize", "Add the key-message summary of every text",
		pipeline.ArticlesFile, pipeline.SummariesFile, pipeline.ColumnText,
		func(cmd *cobra.Command, in string, out string, column string) error {
			runner, err := a.runner(cmd.Context(), topic)
			if err != nil {
				return err
			}

			return runner.Summarize(cmd.Context(), in, out, column, newColumn)
		})

	cmd.Flags().StringVar(&newColumn, "new-column", pipeline.ColumnProcessedText, "Summary column")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic the summary focuses on")

	return cmd
}

func segmentCmd(a *app) *cobra.Command {
	return tableCmd("segment", "Split summaries into one row per labelled message",
		pipeline.SummariesFile, pipeline.MessagesFile, pipeline.ColumnProcessedText,
		func(cmd *cobra.Command, in string, out string, column string) error {
			runner, err := a.runner(cmd.Context(), "")
			if err != nil {
				return err
			}

			return runner.Segment(cmd.Context(), in, out, column)
		})
}

func scoreCmd(a *app) *cobra.Command {
	return tableCmd("score", "Add emotion scores for every message",
		pipeline.MessagesFile, pipeline.ScoresFile, pipeline.ColumnMessage,
		func(cmd *cobra.Command, in string, out string, column string) error {
			runner, err := a.runner(cmd.Context(), "")
			if err != nil {
				return err
			}

			return runner.Score(cmd.Context(), in, out, column)
		})
}

func runCmd(a *app) *cobra.Command {
	var (
		query   string
		dir     string
		topic   string
		onlyNew bool
		w       windowFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage for a query inside a work directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := w.window(time.Now())
			if err != nil {
				return err
			}

			runner, err := a.runner(cmd.Context(), topic)
			if err != nil {
				return err
			}

			return runner.RunAll(cmd.Context(), pipeline.RunRequest{
				Query:   query,
				Window:  window,
				Dir:     dir,
				OnlyNew: onlyNew,
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Search terms")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Work directory for the stage tables")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic the summary focuses on")
	cmd.Flags().BoolVar(&onlyNew, "only-new", false, "Skip URLs saved by earlier harvests")
	w.register(cmd)
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func scheduleCmd(a *app) *cobra.Command {
	var jobsFile string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the harvest jobs of a jobs file on their cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if jobsFile == "" {
				jobsFile = a.cfg.Schedule.JobsFile
			}

			jobs, err := scheduler.LoadJobs(jobsFile)
			if err != nil {
				return err
			}

			loc, err := time.LoadLocation(a.cfg.Schedule.Timezone)
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			runner, err := a.runner(ctx, "")
			if err != nil {
				return err
			}

			sched := scheduler.New(ctx, runner, jobs, loc, a.log)
			if err = sched.Start(); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			a.log.InfoContext(ctx, "Scheduler is started",
				"jobsFile", jobsFile,
				"jobCount", len(jobs),
				"timezone", loc.String())

			<-ctx.Done()
			a.log.InfoContext(ctx, "Shutdown signal is received",
				"error", ctx.Err())

			sched.Stop()
			a.log.InfoContext(ctx, "Scheduler is stopped")

			return nil
		},
	}

	cmd.Flags().StringVarP(&jobsFile, "jobs", "j", "", "Jobs file (default from SCHEDULE_JOBS_FILE)")

	return cmd
}

func historyCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent stage runs from the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("ledger is disabled: DB_PATH is empty")
			}

			runs, err := db.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSTAGE\tSTATUS\tROWS\tINPUT\tOUTPUT\tERROR")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
					run.StartedAt.Format(time.RFC3339),
					run.Stage,
					run.Status,
					run.RowsIn,
					run.RowsOut,
					shorten(run.Input),
					filepath.Base(run.Output),
					shorten(run.Error))
			}

			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")

	return cmd
}

func shorten(s string) string {
	const limit = 60
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= limit {
		return s
	}

	return string([]rune(s)[:limit-3]) + "..."
}
