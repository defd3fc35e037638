package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/indigo423/kuwaiba-sub029/internal/config"
	"github.com/indigo423/kuwaiba-sub029/internal/log"
	"github.com/indigo423/kuwaiba-sub029/internal/otel"
	"github.com/indigo423/kuwaiba-sub029/internal/profile"
	"github.com/indigo423/kuwaiba-sub029/internal/rest"
	"github.com/indigo423/kuwaiba-sub029/internal/translation"
	"github.com/indigo423/kuwaiba-sub029/pkg/process"
	"github.com/indigo423/kuwaiba-sub029/pkg/script/js"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage/bolt"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage/inmemory"
	"github.com/urfave/cli/v2"
)

const flagConfig = "config"

func main() {
	app := &cli.App{
		Name:  "process-engine",
		Usage: "run the business process engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				EnvVars: []string{"CONFIG_FILE"},
				Usage:   "the yaml configuration file, the environment is used when the file does not exist",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the REST API of the process engine",
				Action: serve,
			},
			{
				Name:      "validate",
				Usage:     "load process definition documents and report the ones that are malformed",
				ArgsUsage: "[file...]",
				Action:    validate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig(c *cli.Context) (config.Config, error) {
	conf, err := config.ReadConfig(c.String(flagConfig))
	if err != nil {
		return conf, fmt.Errorf("failed to read the configuration: %w", err)
	}
	log.SetLevel(conf.Log.Level)
	return conf, nil
}

func openStorage(conf config.Config) (storage.Storage, error) {
	switch conf.Storage.Type {
	case config.StorageTypeBolt:
		return bolt.Open(conf.Storage.BoltPath)
	default:
		return inmemory.NewStorage(), nil
	}
}

func serve(c *cli.Context) error {
	profile.InitProfile()
	log.Init()
	defer log.Sync()

	conf, err := readConfig(c)
	if err != nil {
		return err
	}
	appContext, ctxCancel := context.WithCancel(c.Context)
	defer ctxCancel()

	openTelemetry, err := otel.SetupOtel(conf)
	if err != nil {
		return fmt.Errorf("failed to set up OTEL: %w", err)
	}
	defer openTelemetry.Stop(context.Background())

	translator, err := translation.New(conf.Translation.Language)
	if err != nil {
		return err
	}
	persistence, err := openStorage(conf)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", conf.Storage.Type, err)
	}

	engine, err := process.NewEngine(appContext,
		process.WithName(conf.Name),
		process.WithProcessEnginePath(conf.ProcessEngine.Path),
		process.WithStorage(persistence),
		process.WithTranslator(translator),
		process.WithDefinitionCache(conf.ProcessEngine.DefinitionCacheSize, conf.ProcessEngine.DefinitionCacheTTL),
		process.WithScriptRuntime(js.NewJsRuntime(appContext, conf.ProcessEngine.ScriptPool.MaxSize, conf.ProcessEngine.ScriptPool.MinSize)),
	)
	if err != nil {
		return err
	}
	if err := engine.Start(appContext); err != nil {
		// broken definitions or instances are skipped, the engine keeps serving the rest
		log.Warn("Process engine started with errors: %s", err)
	}

	svr := rest.NewServer(engine, conf)
	if _, err := svr.Start(); err != nil {
		return fmt.Errorf("failed to start the REST server: %w", err)
	}

	appStop := make(chan os.Signal, 2)
	handleSigterm(appStop, appContext)

	ctxCancel()
	// cleanup
	svr.Stop(context.Background())
	if err := engine.Stop(); err != nil {
		log.Error("failed to properly stop the process engine: %s", err)
	}
	return nil
}

func handleSigterm(appStop chan os.Signal, ctx context.Context) {
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-appStop
	log.Infof(ctx, "Received %s. Shutting down", sig.String())
}

// validate loads the given documents, or every document of the configured repository, without starting the engine.
func validate(c *cli.Context) error {
	conf, err := readConfig(c)
	if err != nil {
		return err
	}
	translator, err := translation.New(conf.Translation.Language)
	if err != nil {
		return err
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		repository := process.NewDefinitionRepository(conf.ProcessEngine.Path)
		found, err := repository.Scan(c.Context)
		if err != nil {
			return err
		}
		for _, f := range found {
			files = append(files, filepath.Join(repository.Dir(), f.FileName))
		}
	}

	var errJoin error
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			errJoin = errors.Join(errJoin, err)
			continue
		}
		id := process.DefinitionIdFromFileName(file)
		pd, err := process.LoadProcessDefinition(id, data,
			process.LoadWithProcessEnginePath(conf.ProcessEngine.Path),
			process.LoadWithTranslator(translator),
		)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %s\n", file, err)
			errJoin = errors.Join(errJoin, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s: process definition %s with %d activities\n", file, pd.Id, len(pd.Activities))
	}
	if errJoin != nil {
		return cli.Exit("some process definitions are malformed", 1)
	}
	return nil
}
