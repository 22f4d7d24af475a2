package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/sysmayal/tracking-engine/api"
	"github.com/sysmayal/tracking-engine/factory"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/report"
	"github.com/sysmayal/tracking-engine/store/sqlite"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DERIVE
// =============================================================================

func (c *cli) deriveCmd() *cobra.Command {
	var entity, trigger, today, file string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the patch and alerts for a snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := c.today(today)
			if err != nil {
				return err
			}
			snap, err := readSnapshot(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			result, derr := generic.NewEngine(c.registry).Derive(generic.Input{
				EntityType: generic.EntityType(entity),
				Snapshot:   snap,
				Trigger:    generic.Field(trigger),
				Today:      day,
			})
			if result == nil {
				return derr
			}

			out := cmd.OutOrStdout()
			if c.v.GetBool("json") {
				return printJSON(out, api.DeriveResponse{
					Patch:  result.Patch,
					Alerts: alertsOrEmpty(result.Alerts),
					Errors: fieldErrors(derr),
				})
			}

			printPatch(out, result.Patch)
			printAlerts(out, result.Alerts)
			for _, fe := range generic.FieldErrors(derr) {
				fmt.Fprintf(out, "skipped: %s\n", fe.Error())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "entity type (Research, Compliance, Organization)")
	cmd.Flags().StringVar(&trigger, "trigger", "", "changed field; empty for a refresh")
	cmd.Flags().StringVar(&today, "today", "", "reference day YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "snapshot JSON file, - for stdin")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func readSnapshot(stdin io.Reader, path string) (generic.Snapshot, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	var snap generic.Snapshot
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap == nil {
		snap = generic.Snapshot{}
	}
	return snap, nil
}

// =============================================================================
// ALERTS
// =============================================================================

func (c *cli) alertsCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Sweep every stored record for expiry, review and audit alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := c.today(today)
			if err != nil {
				return err
			}
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := api.Sweep(cmd.Context(), store, generic.NewEngine(c.registry), day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.v.GetBool("json") {
				return printJSON(out, result)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"Record", "Entity", "Priority", "Severity", "Kind", "Field", "Date", "Days"})
			for _, a := range result.Alerts {
				tw.AppendRow(table.Row{a.RecordID, a.EntityType, a.Priority, a.Severity, a.Kind, a.Field, a.Date, a.Days})
			}
			tw.AppendFooter(table.Row{"", "", "", "", "", "", "fatal", result.Fatal})
			tw.AppendFooter(table.Row{"", "", "", "", "", "", "warnings", result.Warnings})
			tw.Render()
			for _, f := range result.Failures {
				fmt.Fprintf(out, "record %s: %s\n", f.RecordID, f.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "reference day YYYY-MM-DD (default: today)")
	return cmd
}

// openStore opens the database and applies its stored schema overrides.
func (c *cli) openStore(ctx context.Context) (*sqlite.Store, error) {
	store, err := sqlite.New(c.v.GetString("db"), sqlite.WithLogger(zap.NewNop()))
	if err != nil {
		return nil, err
	}
	if c.registry == generic.DefaultRegistry {
		c.registry = generic.NewRegistry()
		for _, s := range generic.DefaultRegistry.Schemas() {
			c.registry.MustRegister(s)
		}
	}
	if _, err := store.LoadSchemas(ctx, c.registry); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// =============================================================================
// SCHEMA
// =============================================================================

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "schema", Short: "Inspect entity schemas"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered entity types",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			schemas := c.registry.Schemas()
			if c.v.GetBool("json") {
				docs := make([]factory.SchemaDocument, len(schemas))
				for i, s := range schemas {
					docs[i] = factory.NewSchemaFactory().ToDocument(s)
				}
				return printJSON(out, docs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"Entity", "Status field", "Percentage field", "Statuses", "Date rules"})
			for _, s := range schemas {
				tw.AppendRow(table.Row{s.EntityType, s.StatusField, s.PercentageField, len(s.Statuses), len(s.DateRules)})
			}
			tw.Render()
			return nil
		},
	})

	var format string
	show := &cobra.Command{
		Use:   "show <entity>",
		Short: "Print one schema as a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := c.registry.Lookup(generic.EntityType(args[0]))
			if err != nil {
				return err
			}
			doc := factory.NewSchemaFactory().ToDocument(schema)
			out := cmd.OutOrStdout()
			if format == "yaml" {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(doc)
			}
			return printJSON(out, doc)
		},
	}
	show.Flags().StringVar(&format, "format", "json", "json or yaml")
	cmd.AddCommand(show)
	return cmd
}

// =============================================================================
// REPORT
// =============================================================================

func (c *cli) reportCmd() *cobra.Command {
	var today string
	var within int
	cmd := &cobra.Command{
		Use:   "report <entity>",
		Short: "Summarize one entity type's stored records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := c.today(today)
			if err != nil {
				return err
			}
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			schema, err := c.registry.Lookup(generic.EntityType(args[0]))
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context(), generic.RecordFilter{EntityType: schema.EntityType})
			if err != nil {
				return err
			}
			summary := report.Summarize(schema, records, day, within)

			out := cmd.OutOrStdout()
			if c.v.GetBool("json") {
				return printJSON(out, summary)
			}
			printSummary(out, summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "reference day YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&within, "within", report.DefaultWithinDays, "look-ahead days for upcoming dates")
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printPatch(w io.Writer, patch generic.Patch) {
	fields := make([]string, 0, len(patch))
	for f := range patch {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Patch")
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, f := range fields {
		tw.AppendRow(table.Row{f, fmt.Sprint(patch[generic.Field(f)])})
	}
	tw.Render()
}

func printAlerts(w io.Writer, alerts []generic.Alert) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Alerts")
	tw.AppendHeader(table.Row{"Severity", "Kind", "Field", "Date", "Days"})
	for _, a := range alerts {
		tw.AppendRow(table.Row{a.Severity, a.Kind, a.Field, a.Date, a.Days})
	}
	tw.Render()
}

func printSummary(w io.Writer, s report.Summary) {
	fmt.Fprintf(w, "%s on %s: %d records\n", s.EntityType, s.Today, s.Total)

	statuses := make([]string, 0, len(s.StatusCounts))
	for st := range s.StatusCounts {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Statuses")
	tw.AppendHeader(table.Row{"Status", "Records"})
	for _, st := range statuses {
		tw.AppendRow(table.Row{st, s.StatusCounts[st]})
	}
	tw.Render()

	if len(s.Buckets) > 0 {
		bt := table.NewWriter()
		bt.SetOutputMirror(w)
		bt.SetTitle("Progress")
		bt.AppendHeader(table.Row{"Bucket", "Range", "Records"})
		for _, b := range s.Buckets {
			bt.AppendRow(table.Row{b.Label, fmt.Sprintf("%d-%d", b.Min, b.Max), b.Count})
		}
		bt.AppendFooter(table.Row{"Average", s.AveragePercentage.String() + "%", ""})
		bt.AppendFooter(table.Row{"Completed", s.CompletedShare.String() + "%", ""})
		bt.Render()
	}

	ut := table.NewWriter()
	ut.SetOutputMirror(w)
	ut.SetTitle("Upcoming")
	ut.AppendHeader(table.Row{"Record", "Field", "Date", "Days"})
	for _, u := range s.Upcoming {
		ut.AppendRow(table.Row{u.RecordID, u.Field, u.Date, u.Days})
	}
	ut.AppendFooter(table.Row{"Overdue", s.Overdue, "", ""})
	ut.Render()
}

func alertsOrEmpty(alerts []generic.Alert) []generic.Alert {
	if alerts == nil {
		return []generic.Alert{}
	}
	return alerts
}

func fieldErrors(err error) []api.FieldErrorDTO {
	out := []api.FieldErrorDTO{}
	for _, fe := range generic.FieldErrors(err) {
		out = append(out, api.FieldErrorDTO{Field: fe.Field, Value: fe.Value, Message: fe.Error()})
	}
	return out
}
