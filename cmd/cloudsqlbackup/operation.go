package main

import (
	"context"
	"fmt"

	"github.com/function61/cloudsqlbackup/pkg/cbbackup"
	"github.com/function61/cloudsqlbackup/pkg/cbconfig"
	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/spf13/cobra"
)

func operationEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Backup service operation related commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status [instanceId] [operationName]",
		Short: "Check status of a backup operation",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(func(ctx context.Context, handle cbtypes.OperationHandle) error {
				conf, err := cbconfig.ReadFromEnv()
				if err != nil {
					return err
				}

				service, err := cbservice.ServiceFromConfig(ctx, *conf)
				if err != nil {
					return err
				}

				outcome, err := cbbackup.CheckStatus(ctx, service, handle, logex.Levels(logex.StandardLogger()))
				if err != nil {
					return err
				}

				fmt.Printf("status: %s\n", outcome.Status)
				fmt.Printf("done: %v\n", outcome.Success)
				if !outcome.Success {
					fmt.Printf("error: %s\n", outcome.ErrorDetail.String())
				}

				return nil
			}(ossignal.InterruptOrTerminateBackgroundCtx(logex.StandardLogger()), cbtypes.OperationHandle{
				InstanceId: args[0],
				Name:       args[1],
			}))
		},
	})

	return cmd
}
