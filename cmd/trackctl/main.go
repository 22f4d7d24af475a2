/*
main.go - trackctl, the tracking engine command line

PURPOSE:
  Runs the engine from a terminal: derive a snapshot file, sweep the
  alerts of a database, print schemas and dashboard reports.

COMMANDS:
  derive  --entity Compliance --trigger approval_date --today 2025-03-01 --file snap.json
  alerts  --db tracking.db --today 2025-03-01
  schema  list | show <entity> [--format json|yaml]
  report  <entity> --db tracking.db --today 2025-03-01 --within 90

GLOBAL FLAGS (env TRACKING_<NAME>):
  --json     raw JSON output instead of tables
  --schemas  directory of schema override documents
  --db       SQLite database path

SNAPSHOT FILES:
  A JSON object of field -> value. Comments and trailing commas are
  accepted. "-" reads standard input.

SEE ALSO:
  - cmd/server/main.go: The HTTP server
  - api/scheduler.go: Sweep
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sysmayal/tracking-engine/factory"
	"github.com/sysmayal/tracking-engine/generic"

	// Built-in entity schemas
	_ "github.com/sysmayal/tracking-engine/compliance"
	_ "github.com/sysmayal/tracking-engine/organization"
	_ "github.com/sysmayal/tracking-engine/research"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the per-invocation configuration.
type cli struct {
	v        *viper.Viper
	registry *generic.Registry
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), registry: generic.DefaultRegistry}

	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "Tracking engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadSchemas()
		},
	}

	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("schemas", "", "directory of schema override documents")
	root.PersistentFlags().String("db", "tracking.db", "SQLite database path")
	for _, name := range []string{"json", "schemas", "db"} {
		_ = c.v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
	c.v.SetEnvPrefix("TRACKING")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(c.deriveCmd())
	root.AddCommand(c.alertsCmd())
	root.AddCommand(c.schemaCmd())
	root.AddCommand(c.reportCmd())
	return root
}

// loadSchemas applies --schemas documents on top of a copy of the built-ins.
func (c *cli) loadSchemas() error {
	dir := c.v.GetString("schemas")
	if dir == "" {
		return nil
	}
	sf := factory.NewSchemaFactory()
	schemas, err := sf.LoadDir(dir)
	if err != nil {
		return err
	}
	registry := generic.NewRegistry()
	if err := sf.Apply(registry, append(generic.DefaultRegistry.Schemas(), schemas...)); err != nil {
		return err
	}
	c.registry = registry
	return nil
}

func (c *cli) today(s string) (generic.Date, error) {
	if s == "" {
		return generic.Today(), nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, &generic.InvalidFieldError{Field: "today", Value: s, Err: generic.ErrInvalidDate}
	}
	return d, nil
}
