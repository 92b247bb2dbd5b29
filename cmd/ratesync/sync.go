package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/damon-houk/rate-sync-client/internal/application/service"
	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// syncOutput is what the sync command prints
type syncOutput struct {
	SessionID  string           `json:"session_id"`
	Base       string           `json:"base"`
	Date       string           `json:"date,omitempty"`
	CapturedAt time.Time        `json:"captured_at"`
	FromCache  bool             `json:"from_cache"`
	Rates      entity.RateTable `json:"rates"`
	Changes    entity.ChangeSet `json:"changes"`
	DurationMS int64            `json:"duration_ms"`
}

func newSyncCmd(envFile *string) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the latest rates once and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if base == "" {
				base = cfg.Sync.Base
			}

			a, err := newApp(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.syncer.Sync(cmd.Context(), strings.ToUpper(base))
			if err != nil {
				if userErr := service.CategorizeError(err); userErr != nil {
					return fmt.Errorf("%s (%w)", userErr.Message, err)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(syncOutput{
				SessionID:  result.SessionID,
				Base:       result.Base,
				Date:       result.Snapshot.Date,
				CapturedAt: result.Snapshot.CapturedAt,
				FromCache:  result.Snapshot.FromCache,
				Rates:      result.Snapshot.Rates,
				Changes:    result.Changes,
				DurationMS: result.Duration.Milliseconds(),
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base currency (defaults to RATESYNC_BASE)")

	return cmd
}
