package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/meetline/meetline/internal"
	"github.com/meetline/meetline/internal/appstats"
	"github.com/meetline/meetline/internal/assistant"
	"github.com/meetline/meetline/internal/config"
	"github.com/meetline/meetline/internal/jobs"
	"github.com/meetline/meetline/internal/provider"
	"github.com/meetline/meetline/internal/pubsub"
	"github.com/meetline/meetline/internal/server"
	"github.com/meetline/meetline/internal/store"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var (
	app config.App

	flags struct {
		config  string
		dump    string
		debug   bool
		help    bool
		version bool
	}

	cfg *config.Config
	ps  pubsub.PubSub
	st  store.Store
)

func Main() {
	app.Name = internal.AppName
	app.Version = internal.AppVersion
	app.LongName = fmt.Sprintf("%s %s", app.Name, app.Version)
	app.InstanceId = uuid.New().String()

	flag.StringVarP(&flags.config, "config", "c", flags.config, "load configuration file")
	flag.StringVar(&flags.dump, "dump", "", "print config value (e.g. 'recorder.directory')")
	flag.BoolVarP(&flags.debug, "debug", "d", flags.debug, "enable debug log")
	flag.BoolVarP(&flags.help, "help", "h", flags.help, "print help")
	flag.BoolVarP(&flags.version, "version", "v", flags.version, "print version")
	flag.Parse()

	if flags.help {
		fmt.Printf("%s\n\n", app.LongName)
		flag.PrintDefaults()
		shutdown(0)
	}

	if flags.version {
		fmt.Println(app.LongName)
		shutdown(0)
	}

	if flags.dump != "" {
		log.SetLevel(log.FatalLevel)
		cfg = initConfig()
		loadConfig()
		dumpConfig()
	}

	Init()
	Run()
}

func Init() {
	cfg = initConfig()
	log.Infof("Starting %s PID: %d", app.Name, os.Getpid())
	loadConfig()
	configureLog()
	sighupHandler()
}

func Run() {
	appstats.Init()

	if cfg.Prometheus.Enable {
		appstats.RegisterMetrics()
		appstats.ServePromMetrics(cfg.Prometheus)
	}

	var err error
	if st, err = store.Open(cfg.Store); err != nil {
		log.Fatalf("failed to open %s store: %s", cfg.Store.Adapter, err)
	}

	ps = pubsub.NewPubSub(cfg.PubSub)

	if err := ps.Check(); err != nil {
		log.Fatalf("failed to connect to pubsub: %v", err)
	}

	pc := provider.NewClient(cfg.Provider)
	ac := assistant.NewClient(cfg.Assistant)
	sv := server.NewServer(cfg, pc, ac, st, ps)

	worker := jobs.NewRecordingWorker(ps, st, cfg.PubSub.Channels.Recordings)
	go func() {
		if err := worker.Subscribe(); err != nil {
			log.Fatalf("failed to subscribe to pubsub %s: %s",
				cfg.PubSub.Channels.Recordings, err)
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("failed to notify readiness to systemd: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
		log.Errorf("http server failed: %s", err)
		shutdown(1)
	}
	shutdown(0)
}

func shutdown(code int) {
	if ps != nil {
		if err := ps.Close(); err != nil {
			log.Errorf("failed to close pubsub: %s", err)
		}
	}

	if st != nil {
		if err := st.Close(); err != nil {
			log.Errorf("failed to close store: %s", err)
		}
	}

	os.Exit(code)
}

func sighupHandler() {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			<-sighup
			log.Debug("reloading config...")
			loadConfig()
			configureLog()
		}
	}()
}
