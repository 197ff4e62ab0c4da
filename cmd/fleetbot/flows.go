package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/fleetbot/internal/application/flows"
	"github.com/garyjia/fleetbot/internal/container"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Print every conversation flow with its steps and transitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()

		containerCfg, err := cfg.ToContainerConfig()
		if err != nil {
			return err
		}
		db, err := container.ProvideDatabase(&containerCfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Raw.Close()

		repos, err := container.ProvideRepositories(db.SqlDB, logger)
		if err != nil {
			return err
		}
		catalog, err := flows.NewCatalog(flows.Store{
			Drivers:    repos.Drivers,
			Vehicles:   repos.Vehicles,
			Shifts:     repos.Shifts,
			Deliveries: repos.Deliveries,
			Reports:    repos.Reports,
			Links:      repos.Links,
			Tx:         db.TransactionMgr,
		})
		if err != nil {
			return err
		}
		registry, err := catalog.Registry()
		if err != nil {
			return err
		}

		printFlows(cmd.OutOrStdout(), registry)
		return nil
	},
}

// printFlows writes one block per flow: "step(field) -> next" lines
func printFlows(w io.Writer, registry *domainwf.Registry) {
	for _, f := range registry.Flows() {
		fmt.Fprintf(w, "%s\n", f.ID)
		for _, st := range f.Steps() {
			targets := st.Targets()
			next := make([]string, len(targets))
			for i, to := range targets {
				next[i] = string(to)
			}
			fmt.Fprintf(w, "  %s(%s) -> %s\n", st.ID, st.Field, strings.Join(next, " | "))
		}
	}
}
