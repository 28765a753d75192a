// Package maintenance implements offline journal maintenance commands:
// replay reports, payload validation, hash-chain verification, and applied
// migration listings.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/platform/storage/sqlitemigrate"
	"github.com/plateau-io/plateau/internal/storage"
	"github.com/plateau-io/plateau/internal/storage/sqlite"
)

const replayPageSize = 200

// Config holds maintenance command configuration.
type Config struct {
	PlatformID  string
	PlatformIDs string
	DBPath      string        `env:"PLATEAU_JOURNAL_DB_PATH"`
	Timeout     time.Duration `env:"PLATEAU_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	UntilSeq    uint64
	AfterSeq    uint64
	Validate    bool
	Integrity   bool
	Reindex     bool
	Migrations  bool
	WarningsCap int
	JSONOutput  bool
}

type envConfig struct {
	DBPath  string        `env:"PLATEAU_JOURNAL_DB_PATH"`
	Timeout time.Duration `env:"PLATEAU_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// openStore is a seam for tests.
var openStore = func(path string, registry *event.Registry) (journalStore, error) {
	return sqlite.Open(path, registry)
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:      envCfg.DBPath,
		Timeout:     envCfg.Timeout,
		WarningsCap: 25,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "platform-journal.db")
	}

	fs.StringVar(&cfg.PlatformID, "platform-id", "", "platform id to inspect")
	fs.StringVar(&cfg.PlatformIDs, "platform-ids", "", "comma-separated platform ids to inspect")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to journal sqlite database (default: PLATEAU_JOURNAL_DB_PATH or data/platform-journal.db)")
	fs.Uint64Var(&cfg.UntilSeq, "until-seq", 0, "replay up to this event sequence (0 = latest)")
	fs.Uint64Var(&cfg.AfterSeq, "after-seq", 0, "start replay after this event sequence")
	fs.BoolVar(&cfg.Validate, "validate", false, "re-validate event payloads without rebuilding state")
	fs.BoolVar(&cfg.Integrity, "integrity", false, "verify the event hash chain")
	fs.BoolVar(&cfg.Reindex, "reindex", false, "rebuild the platform index from the journal")
	fs.BoolVar(&cfg.Migrations, "migrations", false, "list applied schema migrations")
	fs.IntVar(&cfg.WarningsCap, "warnings-cap", cfg.WarningsCap, "max warnings to print (0 = no limit)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	if cfg.Migrations {
		if cfg.Validate || cfg.Integrity || cfg.Reindex || cfg.AfterSeq > 0 || cfg.UntilSeq > 0 {
			return errors.New("-migrations cannot be combined with replay/verify flags")
		}
		if cfg.PlatformID != "" || cfg.PlatformIDs != "" {
			return errors.New("-migrations cannot be combined with -platform-id or -platform-ids")
		}
	}
	if cfg.Validate && cfg.Integrity {
		return errors.New("-validate cannot be combined with -integrity")
	}
	if cfg.Reindex {
		if cfg.Validate || cfg.Integrity || cfg.AfterSeq > 0 || cfg.UntilSeq > 0 {
			return errors.New("-reindex cannot be combined with replay/verify flags")
		}
		if cfg.PlatformID != "" || cfg.PlatformIDs != "" {
			return errors.New("-reindex rebuilds every platform; it cannot be combined with -platform-id or -platform-ids")
		}
	}

	registry, err := platform.NewEventRegistry()
	if err != nil {
		return fmt.Errorf("build event registry: %w", err)
	}

	store, err := openStore(cfg.DBPath, registry)
	if err != nil {
		return fmt.Errorf("open journal store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close journal store: %v\n", closeErr)
		}
	}()

	if cfg.Migrations {
		return runMigrationsReport(ctx, store, cfg.JSONOutput, out)
	}
	if cfg.Reindex {
		rebuilt, err := store.RebuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		fmt.Fprintf(out, "rebuilt index for %d platforms\n", rebuilt)
		return nil
	}

	platformIDs, err := resolvePlatformIDs(ctx, store, cfg.PlatformID, cfg.PlatformIDs)
	if err != nil {
		return err
	}

	if cfg.Integrity {
		return runIntegrity(ctx, store, platformIDs, cfg.JSONOutput, out)
	}
	if cfg.Validate {
		return runValidate(ctx, store, registry, platformIDs, cfg, out)
	}
	return runReplay(ctx, store, platformIDs, cfg, out)
}

// resolvePlatformIDs returns the explicit ids, or every known platform when
// no id flags were given.
func resolvePlatformIDs(ctx context.Context, store journalStore, single, list string) ([]string, error) {
	single = strings.TrimSpace(single)
	if single != "" && strings.TrimSpace(list) != "" {
		return nil, errors.New("-platform-id cannot be combined with -platform-ids")
	}
	if single != "" {
		return []string{single}, nil
	}
	if ids := splitCSV(list); len(ids) > 0 {
		return ids, nil
	}

	entries, err := store.ListEntries(ctx, storage.IndexFilter{IncludeDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("journal has no platforms")
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.PlatformID)
	}
	return ids, nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// capWarnings bounds a warning list for printing. It returns the bounded
// slice and the original total.
func capWarnings(warnings []string, limit int) ([]string, int) {
	total := len(warnings)
	if limit > 0 && total > limit {
		return warnings[:limit], total
	}
	return warnings, total
}

type replayReport struct {
	PlatformID      string `json:"platform_id"`
	ApplicationName string `json:"application_name,omitempty"`
	PlatformName    string `json:"platform_name,omitempty"`
	Events          int    `json:"events"`
	LastSeq         uint64 `json:"last_seq"`
	VersionID       int64  `json:"version_id"`
	Deleted         bool   `json:"deleted,omitempty"`
	Warnings        []string
	WarningsTotal   int `json:"warnings_total,omitempty"`
}

func runReplay(ctx context.Context, store journalStore, platformIDs []string, cfg Config, out io.Writer) error {
	for _, platformID := range platformIDs {
		report, err := replayOne(ctx, store, platformID, cfg.AfterSeq, cfg.UntilSeq)
		if err != nil {
			return fmt.Errorf("replay %s: %w", platformID, err)
		}
		report.Warnings, report.WarningsTotal = capWarnings(report.Warnings, cfg.WarningsCap)
		if cfg.JSONOutput {
			if err := json.NewEncoder(out).Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			continue
		}
		fmt.Fprintf(out, "%s: %d events, last seq %d, version %d",
			report.PlatformID, report.Events, report.LastSeq, report.VersionID)
		if report.ApplicationName != "" {
			fmt.Fprintf(out, " (%s/%s)", report.ApplicationName, report.PlatformName)
		}
		if report.Deleted {
			fmt.Fprint(out, " [deleted]")
		}
		fmt.Fprintln(out)
		for _, warning := range report.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", warning)
		}
		if report.WarningsTotal > len(report.Warnings) {
			fmt.Fprintf(out, "  ... %d more warnings\n", report.WarningsTotal-len(report.Warnings))
		}
	}
	return nil
}

func replayOne(ctx context.Context, store journalStore, platformID string, afterSeq, untilSeq uint64) (replayReport, error) {
	report := replayReport{PlatformID: platformID}
	state := platform.State{}
	cursor := afterSeq

	for {
		events, err := store.ListEvents(ctx, platformID, cursor, replayPageSize)
		if err != nil {
			return replayReport{}, err
		}
		done := false
		for _, evt := range events {
			if untilSeq > 0 && evt.Seq > untilSeq {
				done = true
				break
			}
			next, err := platform.Fold(state, evt)
			if err != nil {
				report.Warnings = append(report.Warnings, err.Error())
				cursor = evt.Seq
				continue
			}
			state = next
			report.Events++
			report.LastSeq = evt.Seq
			cursor = evt.Seq
		}
		if done || len(events) < replayPageSize {
			break
		}
	}

	report.ApplicationName = state.Key.ApplicationName
	report.PlatformName = state.Key.PlatformName
	report.VersionID = state.VersionID
	report.Deleted = state.Deleted
	return report, nil
}

type validateReport struct {
	PlatformID    string   `json:"platform_id"`
	Events        int      `json:"events"`
	Invalid       int      `json:"invalid"`
	Warnings      []string `json:"warnings,omitempty"`
	WarningsTotal int      `json:"warnings_total,omitempty"`
}

func runValidate(ctx context.Context, store journalStore, registry *event.Registry, platformIDs []string, cfg Config, out io.Writer) error {
	var invalid int
	for _, platformID := range platformIDs {
		report := validateReport{PlatformID: platformID}
		cursor := cfg.AfterSeq
		for {
			events, err := store.ListEvents(ctx, platformID, cursor, replayPageSize)
			if err != nil {
				return fmt.Errorf("validate %s: %w", platformID, err)
			}
			done := false
			for _, evt := range events {
				if cfg.UntilSeq > 0 && evt.Seq > cfg.UntilSeq {
					done = true
					break
				}
				report.Events++
				cursor = evt.Seq
				if _, err := registry.ValidateForAppend(evt); err != nil {
					report.Invalid++
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("seq %d: %v", evt.Seq, err))
				}
			}
			if done || len(events) < replayPageSize {
				break
			}
		}
		invalid += report.Invalid
		report.Warnings, report.WarningsTotal = capWarnings(report.Warnings, cfg.WarningsCap)
		if cfg.JSONOutput {
			if err := json.NewEncoder(out).Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			continue
		}
		fmt.Fprintf(out, "%s: %d events, %d invalid\n", report.PlatformID, report.Events, report.Invalid)
		for _, warning := range report.Warnings {
			fmt.Fprintf(out, "  %s\n", warning)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid events", invalid)
	}
	return nil
}

type integrityReport struct {
	PlatformID string   `json:"platform_id"`
	LastSeq    uint64   `json:"last_seq"`
	Issues     []string `json:"issues,omitempty"`
}

func runIntegrity(ctx context.Context, store journalStore, platformIDs []string, jsonOutput bool, out io.Writer) error {
	var broken int
	for _, platformID := range platformIDs {
		issues, err := store.VerifyEventIntegrity(ctx, platformID)
		if err != nil {
			return fmt.Errorf("verify %s: %w", platformID, err)
		}
		lastSeq, err := store.GetLatestEventSeq(ctx, platformID)
		if err != nil {
			return fmt.Errorf("latest seq %s: %w", platformID, err)
		}
		report := integrityReport{PlatformID: platformID, LastSeq: lastSeq}
		for _, issue := range issues {
			report.Issues = append(report.Issues, fmt.Sprintf("seq %d: %s", issue.Seq, issue.Reason))
		}
		if len(report.Issues) > 0 {
			broken++
		}
		if jsonOutput {
			if err := json.NewEncoder(out).Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			continue
		}
		if len(report.Issues) == 0 {
			fmt.Fprintf(out, "%s: chain OK through seq %d\n", platformID, lastSeq)
			continue
		}
		fmt.Fprintf(out, "%s: chain BROKEN\n", platformID)
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "  %s\n", issue)
		}
	}
	if broken > 0 {
		return fmt.Errorf("%d platforms with chain issues", broken)
	}
	return nil
}

func runMigrationsReport(ctx context.Context, store journalStore, jsonOutput bool, out io.Writer) error {
	applied, err := sqlitemigrate.ListApplied(ctx, store.DB())
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(out).Encode(applied)
	}
	for _, migration := range applied {
		fmt.Fprintf(out, "%s\t%s\n", migration.AppliedAt.Format(time.RFC3339), migration.Name)
	}
	return nil
}
