package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/function61/cloudsqlbackup/pkg/cbalert"
	"github.com/function61/cloudsqlbackup/pkg/cbconfig"
	"github.com/function61/cloudsqlbackup/pkg/cbmetrics"
	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/cloudsqlbackup/pkg/cbworkflow"
	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	app := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Takes on-demand Cloud SQL backups, retrying and alerting on failure",
		Version: dynversion.Version,
	}

	app.AddCommand(&cobra.Command{
		Use:   "now [instanceId]",
		Short: "Takes a backup of an instance now",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			exitIfError(backupNow(
				ossignal.InterruptOrTerminateBackgroundCtx(logex.Prefix("main", rootLogger)),
				cbtypes.BackupRequest{InstanceId: args[0]},
				rootLogger))
		},
	})

	app.AddCommand(&cobra.Command{
		Use:   "handle-event",
		Short: "Handles one trigger event (JSON from stdin)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			exitIfError(handleEventFromStdin(
				ossignal.InterruptOrTerminateBackgroundCtx(logex.Prefix("main", rootLogger)),
				rootLogger))
		},
	})

	app.AddCommand(serveEntry())
	app.AddCommand(operationEntry())
	app.AddCommand(configEntry())

	exitIfError(app.Execute())
}

func backupNow(ctx context.Context, req cbtypes.BackupRequest, logger *log.Logger) error {
	workflow, _, err := workflowFromEnv(ctx, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}

	return resultToError(workflow.HandleRequest(ctx, req))
}

func handleEventFromStdin(ctx context.Context, logger *log.Logger) error {
	body, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	workflow, _, err := workflowFromEnv(ctx, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}

	return resultToError(workflow.HandleEvent(ctx, body))
}

func workflowFromEnv(
	ctx context.Context,
	reg prometheus.Registerer,
	logger *log.Logger,
) (*cbworkflow.Workflow, *cbconfig.Config, error) {
	conf, err := cbconfig.ReadFromEnv()
	if err != nil {
		return nil, nil, err
	}

	if conf.UsesDefaults() {
		logex.Levels(logex.Prefix("config", logger)).Error.Printf(
			"using non-production defaults (project %s, alert topic %s)",
			conf.ProjectId,
			conf.Alert.Topic)
	}

	workflow, err := workflowFromConfig(ctx, *conf, reg, logger)
	return workflow, conf, err
}

func workflowFromConfig(
	ctx context.Context,
	conf cbconfig.Config,
	reg prometheus.Registerer,
	logger *log.Logger,
) (*cbworkflow.Workflow, error) {
	service, err := cbservice.ServiceFromConfig(ctx, conf)
	if err != nil {
		return nil, err
	}

	alerts, err := cbalert.PublisherFromConfig(ctx, conf)
	if err != nil {
		return nil, err
	}

	return cbworkflow.New(
		service,
		alerts,
		clock.WallClock,
		conf.BackoffUnit.Duration,
		cbmetrics.New(reg),
		logex.Prefix("workflow", logger),
	), nil
}

func resultToError(result cbworkflow.Result) error {
	if result.IsBackupFailure() || result == cbworkflow.ResultInvalidInput {
		return fmt.Errorf("backup did not succeed: %s", result)
	}

	return nil
}

func exitIfError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
