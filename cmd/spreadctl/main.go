package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"SpreadSync/internal/app"
	"SpreadSync/internal/config"
	"SpreadSync/internal/repository"
	"SpreadSync/internal/service"
	"SpreadSync/internal/utils/logging"
)

const usage = `usage: spreadctl <command> [flags]

commands:
  live        fetch current odds and store them as the latest snapshot
  historical  backfill one snapshot (-date) or a range (-start/-end/-interval)
  seasons     backfill whole seasons (-start-year/-end-year or -season)
  scores      reconcile final scores from the scores feed
  analyze     spread outcomes for completed games
  summary     score coverage and outcome counts
  weeks       weeks available for analysis
  weekly      full weekly report (-start/-end, default: week with the most data)
  quick       condensed weekly report
  status      database connectivity and table counts
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	out := fs.String("out", "", "write the result to this file instead of stdout")
	bookmakers := fs.String("bookmakers", "", "comma-separated bookmaker keys")

	var (
		date, start, end      string
		interval, season      int
		startYear, endYear    int
		limit                 int
		dryRun, yes, autoBest bool
	)
	switch cmd {
	case "historical":
		fs.StringVar(&date, "date", "", "single snapshot timestamp (RFC3339)")
		fs.StringVar(&start, "start", "", "range start YYYY-MM-DD")
		fs.StringVar(&end, "end", "", "range end YYYY-MM-DD")
		fs.IntVar(&interval, "interval", 0, "hours between snapshots")
	case "seasons":
		fs.IntVar(&startYear, "start-year", 0, "first season")
		fs.IntVar(&endYear, "end-year", 0, "last season")
		fs.IntVar(&season, "season", 0, "single season")
		fs.IntVar(&interval, "interval", 0, "hours between snapshots")
		fs.BoolVar(&dryRun, "dry-run", false, "print the plan only")
		fs.BoolVar(&yes, "yes", false, "confirm runs above the call threshold")
	case "scores":
		fs.IntVar(&season, "season", 0, "season to reconcile (0 = all)")
		fs.BoolVar(&dryRun, "dry-run", false, "report planned updates without writing")
	case "analyze", "weeks":
		fs.IntVar(&limit, "limit", 10, "rows to print")
	case "weekly", "quick":
		fs.StringVar(&start, "start", "", "week start YYYY-MM-DD (default: week with the most data)")
		fs.StringVar(&end, "end", "", "week end YYYY-MM-DD (default start + 7 days)")
		fs.BoolVar(&autoBest, "auto-best", false, "pick the week with the most games")
	case "live", "summary", "status":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Log)
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	w, closeOut, err := output(*out)
	if err != nil {
		return err
	}
	defer closeOut()

	books := splitList(*bookmakers)
	switch cmd {
	case "live":
		counts, err := a.Sync.SyncLive(ctx, books)
		if err != nil {
			return err
		}
		return printJSON(w, counts)

	case "historical":
		if date != "" {
			ts, err := time.Parse(time.RFC3339, date)
			if err != nil {
				return fmt.Errorf("-date must be RFC3339: %w", err)
			}
			counts, err := a.Sync.SyncHistorical(ctx, ts, books)
			if err != nil {
				return err
			}
			return printJSON(w, counts)
		}
		result, err := a.Sync.SyncHistoricalRange(ctx, service.RangeRequest{
			StartDate: start, EndDate: end, IntervalHours: interval, Bookmakers: books,
		})
		if err != nil {
			return err
		}
		return printJSON(w, result)

	case "seasons":
		report, err := a.Seasons.Run(ctx, service.SeasonRequest{
			StartYear: startYear, EndYear: endYear, Season: season, IntervalHours: interval,
			Bookmakers: books, DryRun: dryRun, Confirm: yes,
		})
		if errors.Is(err, service.ErrConfirmationRequired) {
			_ = printJSON(w, report.Plan)
			return fmt.Errorf("%w: re-run with -yes or inspect with -dry-run", err)
		}
		if err != nil {
			return err
		}
		return printJSON(w, report)

	case "scores":
		result, err := a.Scores.Run(ctx, service.ReconcileRequest{Season: season, DryRun: dryRun})
		if err != nil {
			return err
		}
		return printJSON(w, result)

	case "analyze":
		rows, err := a.Reports.Outcomes(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(w, rows)

	case "summary":
		summary, err := a.Reports.Summary(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, summary)

	case "weeks":
		weeks, err := a.Reports.Weeks(ctx, limit)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, service.RenderWeeks(weeks))
		return err

	case "weekly", "quick":
		window, err := resolveWeek(ctx, a.Reports, start, end, autoBest)
		if err != nil {
			return err
		}
		var text string
		if cmd == "weekly" {
			text, err = a.Reports.WeeklyReport(ctx, window)
		} else {
			text, err = a.Reports.QuickReport(ctx, window)
		}
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, text)
		return err

	case "status":
		status := a.Reports.Status(ctx)
		if err := printJSON(w, status); err != nil {
			return err
		}
		if !status.Connected {
			return errors.New(status.Error)
		}
	}
	return nil
}

type bestWeekFinder interface {
	BestWeek(ctx context.Context) (service.WeekWindow, *repository.WeekSummary, error)
}

// resolveWeek parses -start/-end; without -start the richest stored week is used.
func resolveWeek(ctx context.Context, reports bestWeekFinder, start, end string, autoBest bool) (service.WeekWindow, error) {
	if autoBest || start == "" {
		if end != "" && !autoBest {
			return service.WeekWindow{}, errors.New("-end needs -start")
		}
		w, _, err := reports.BestWeek(ctx)
		return w, err
	}
	return service.ParseWeek(start, end)
}

func output(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
