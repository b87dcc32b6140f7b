package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/doctor"
	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/store"
)

func newDoctorCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check server reachability, auth, and filesystem readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			checker := doctor.NewChecker(newServerClient(cfg))
			checker.OpenStore = func(path string) error {
				st, openErr := store.Open(path, store.Options{})
				if openErr != nil {
					return openErr
				}
				return st.Close()
			}
			checker.PendingCount = func(path string) (int, error) {
				st, openErr := store.Open(path, store.Options{})
				if openErr != nil {
					return 0, openErr
				}
				defer st.Close()
				pending, pendingErr := st.Pending()
				if pendingErr != nil {
					return 0, pendingErr
				}
				return len(pending), nil
			}

			report := checker.Check(cmd.Context(), cfg)

			if app.Opts.JSON {
				encoder := json.NewEncoder(app.IO.Out)
				if err := encoder.Encode(report); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			} else {
				checks := append([]doctor.Check{}, report.Checks...)
				sort.SliceStable(checks, func(i, j int) bool {
					return checks[i].Name < checks[j].Name
				})
				for _, check := range checks {
					fmt.Fprintf(app.IO.Out, "[%s] %s: %s\n", check.Severity, check.Name, check.Message)
				}
			}

			if report.HasErrors() {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("doctor found %d error(s)", report.ErrorCount()))
			}
			return nil
		},
	}
}
