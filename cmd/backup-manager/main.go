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
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"backupd/internal/app"
	"backupd/internal/schedule"
	"backupd/internal/storage"
)

const usage = `usage: backup-manager [-config path] <command> [args]

commands:
  start              start the backup service
  stop               stop the backup service
  status             show the backup service state
  create <schedule>  add "path;HH:MM;name"
  list               list schedules with their index
  delete <index>     delete the schedule at index
  backups            list archives in the backup directory
  history [n]        show the last n backup runs (default 20)
`

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./backupd.yaml", "path to config (yaml or json); defaults apply when missing")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, err := app.NewManager(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	code := run(ctx, m, flag.Args(), os.Stdout)
	_ = m.Close()
	os.Exit(code)
}

func run(ctx context.Context, m *app.Manager, args []string, out io.Writer) int {
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "start":
		err = m.StartService(ctx)
		if err == nil {
			fmt.Fprintln(out, "backup_service started")
		}
	case "stop":
		err = m.StopService(ctx)
		if err == nil {
			fmt.Fprintln(out, "backup_service stopped")
		}
	case "status":
		err = status(ctx, m, out)
	case "create":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, `usage: backup-manager create "path;HH:MM;name"`)
			return 2
		}
		var s schedule.Schedule
		if s, err = m.CreateSchedule(ctx, rest[0]); err == nil {
			fmt.Fprintf(out, "New schedule added: %s (next run %s)\n", s, formatTime(schedule.NextRun(s, time.Now())))
		}
	case "list":
		err = list(ctx, m, out)
	case "delete":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "usage: backup-manager delete <index>")
			return 2
		}
		idx, convErr := strconv.Atoi(rest[0])
		if convErr != nil {
			fmt.Fprintf(os.Stderr, "Error: index must be a number, got %q\n", rest[0])
			return 2
		}
		var line string
		if line, err = m.DeleteSchedule(ctx, idx); err == nil {
			fmt.Fprintln(out, "Schedule deleted:", line)
		}
	case "backups":
		err = backups(ctx, m, out)
	case "history":
		limit := 20
		if len(rest) > 0 {
			n, convErr := strconv.Atoi(rest[0])
			if convErr != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "Error: count must be a positive number, got %q\n", rest[0])
				return 2
			}
			limit = n
		}
		err = history(ctx, m, limit, out)
	default:
		fmt.Fprintf(out, "Command '%s' not implemented yet\n", cmd)
		return 2
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func status(ctx context.Context, m *app.Manager, out io.Writer) error {
	st, err := m.ServiceStatus(ctx)
	if err != nil {
		return err
	}
	if !st.Found() {
		fmt.Fprintf(out, "%s: not installed\n", st.Name)
		return nil
	}
	line := fmt.Sprintf("%s: %s (%s)", st.Name, st.Active, st.SubState)
	if since := st.Since(); !since.IsZero() {
		line += " since " + humanize.Time(since)
	}
	if st.MainPID > 0 {
		line += fmt.Sprintf(", pid %d", st.MainPID)
	}
	fmt.Fprintln(out, line)
	return nil
}

func list(ctx context.Context, m *app.Manager, out io.Writer) error {
	entries, err := m.ListSchedules(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no schedules")
		return nil
	}
	for _, e := range entries {
		if e.Schedule == nil {
			fmt.Fprintf(out, "%d: %s (invalid, never runs)\n", e.Index, e.Line)
			continue
		}
		fmt.Fprintf(out, "%d: %s (next run %s)\n", e.Index, e.Line, formatTime(e.Next))
	}
	return nil
}

func backups(ctx context.Context, m *app.Manager, out io.Writer) error {
	infos, err := m.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "no backups")
		return nil
	}
	for _, b := range infos {
		fmt.Fprintf(out, "%s\t%s\t%s\n", b.File, humanize.Bytes(uint64(b.Size)), humanize.Time(b.ModTime))
	}
	return nil
}

func history(ctx context.Context, m *app.Manager, limit int, out io.Writer) error {
	runs, err := m.History(ctx, limit)
	if errors.Is(err, storage.ErrDisabled) {
		return errors.New("run history needs storage.driver set to file or sqlite")
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	for _, r := range runs {
		result := "ok " + humanize.Bytes(uint64(r.Bytes))
		if !r.OK {
			result = "failed: " + r.Error
		}
		fmt.Fprintf(out, "%s\t%s -> %s\t%s\n", formatTime(r.At), r.Source, r.Name, result)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006 15:04") + " (" + humanize.Time(t) + ")"
}
