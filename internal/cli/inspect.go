package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"leitstand/internal/storage"
	"leitstand/pkg/domain"
	dErrors "leitstand/pkg/domain-errors"
)

func resolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <domain>",
		Short: "Print the file path a domain is stored at",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := storage.SafeTargetPath(args[0], opts.dataDir)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvalidDomain) {
					return invalidError(err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func filenameCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filename <domain>",
		Short: "Print the filename derived from a domain",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := domain.ParseName(args[0])
			if err != nil {
				var de *domain.DomainError
				if errors.As(err, &de) {
					return invalidError(err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), storage.TargetFilename(name))
			return nil
		},
	}
}
