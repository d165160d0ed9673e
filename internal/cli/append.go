package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"leitstand/internal/ingest/service"
	"leitstand/internal/ingest/store"
	"leitstand/internal/storage"
	dErrors "leitstand/pkg/domain-errors"
)

func appendCmd(opts *rootOptions) *cobra.Command {
	var lockTimeout time.Duration

	c := &cobra.Command{
		Use:   "append <domain> <json-object>",
		Short: "Append one JSON object to the domain's JSONL file",
		Long: `Append one JSON object to the domain's JSONL file and print its path.

The "domain" field is set to the normalized domain when absent. A "domain"
field naming a different domain is rejected (exit 1), as the ingest API does;
it is not overwritten.`,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, payload := args[0], []byte(args[1])

			if !json.Valid(payload) {
				return invalidError(errors.New("invalid json payload"))
			}
			if p := bytes.TrimSpace(payload); len(p) == 0 || p[0] != '{' {
				return invalidError(errors.New("payload must be a JSON object"))
			}

			base, err := storage.OpenBaseDir(opts.dataDir)
			if err != nil {
				return err
			}
			svc, err := service.New(base,
				store.NewAppender(base.Path(), store.WithLockTimeout(lockTimeout)),
				service.WithLogger(opts.log),
			)
			if err != nil {
				return err
			}

			result, err := svc.Ingest(cmd.Context(), raw, payload)
			if err != nil {
				return ingestError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Path)
			return nil
		},
	}

	c.Flags().DurationVar(&lockTimeout, "lock-timeout", 30*time.Second, "how long to wait for the file lock")
	return c
}

// ingestError keeps caller mistakes on exit code 1 and lets storage
// failures surface as plain errors.
func ingestError(err error) error {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidDomain:
		return invalidError(errors.New("invalid domain"))
	case dErrors.CodeInvalidJSON, dErrors.CodeInvalidPayload, dErrors.CodeDomainMismatch:
		return invalidError(err)
	default:
		return err
	}
}
