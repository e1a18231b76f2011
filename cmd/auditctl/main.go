// Command auditctl answers compliance questions against the audit trail:
// grouped counts, recent alerts, and retention purges.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"dgtt/internal/audit"
	auditpostgres "dgtt/internal/audit/store/postgres"
	"dgtt/internal/platform/config"
	"dgtt/internal/platform/postgres"
	"dgtt/pkg/requestcontext"
)

// Service is the part of the audit service the CLI drives.
type Service interface {
	Counts(ctx context.Context, groupBy audit.GroupBy, filter audit.Filter) ([]audit.Count, error)
	NeedsAlert(ctx context.Context, minLevel audit.Level, window time.Duration) ([]audit.Entry, error)
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

var errUsage = errors.New("usage: auditctl counts|alerts|purge [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		color.Red("load config: %v", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		color.Red("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := audit.NewService(auditpostgres.New(db))
	if err := run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		color.Red("%v", err)
		os.Exit(2)
	}
}

func run(ctx context.Context, svc Service, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	ctx = requestcontext.WithTime(ctx, time.Now())
	switch args[0] {
	case "counts":
		return runCounts(ctx, svc, args[1:], out)
	case "alerts":
		return runAlerts(ctx, svc, args[1:], out)
	case "purge":
		return runPurge(ctx, svc, args[1:], out)
	}
	return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}

func runCounts(ctx context.Context, svc Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("counts", flag.ContinueOnError)
	fs.SetOutput(out)
	by := fs.String("by", string(audit.GroupByAction), "action, actor, level or entity")
	since := fs.Duration("since", 0, "only count entries from this far back (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := audit.Filter{}
	if *since > 0 {
		filter.From = requestcontext.Now(ctx).Add(-*since)
	}
	groupBy := audit.GroupBy(strings.ToLower(*by))
	counts, err := svc.Counts(ctx, groupBy, filter)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{strings.ToUpper(string(groupBy)), "TOTAL"})
	var total int64
	for _, c := range counts {
		key := c.Key
		if groupBy == audit.GroupByLevel {
			key = paintLevel(audit.Level(c.Key))
		}
		table.Append([]string{key, strconv.FormatInt(c.Total, 10)})
		total += c.Total
	}
	table.SetFooter([]string{"", strconv.FormatInt(total, 10)})
	table.Render()
	return nil
}

func runAlerts(ctx context.Context, svc Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("alerts", flag.ContinueOnError)
	fs.SetOutput(out)
	level := fs.String("level", string(audit.DefaultAlertLevel), "minimum level")
	window := fs.Duration("window", 24*time.Hour, "trailing window")
	if err := fs.Parse(args); err != nil {
		return err
	}

	threshold := audit.Level(strings.ToUpper(*level))
	if !threshold.IsValid() {
		return fmt.Errorf("unknown level %q", *level)
	}
	entries, err := svc.NeedsAlert(ctx, threshold, *window)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, color.GreenString("no entries at or above %s in the last %s", threshold, *window))
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"When", "Level", "Action", "Entity", "Actor", "Client IP", "Message"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		table.Append([]string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			paintLevel(e.Level),
			string(e.Action),
			string(e.EntityType) + "/" + e.EntityID,
			e.ActorID,
			e.ClientIP,
			e.Message,
		})
	}
	table.Render()
	return nil
}

func runPurge(ctx context.Context, svc Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(out)
	olderThan := fs.Duration("older-than", 0, "delete entries older than this age")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *olderThan <= 0 {
		return errors.New("purge: -older-than must be a positive duration")
	}

	cutoff := requestcontext.Now(ctx).Add(-*olderThan)
	removed, err := svc.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s entries created before %s\n",
		color.YellowString("purged %d", removed), cutoff.UTC().Format(time.RFC3339))
	return nil
}

func paintLevel(l audit.Level) string {
	switch {
	case l.AtLeast(audit.LevelAlerte):
		return color.RedString(string(l))
	case l.AtLeast(audit.LevelWarning):
		return color.YellowString(string(l))
	}
	return string(l)
}
