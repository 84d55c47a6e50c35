package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/config"
	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/ingest"
)

var (
	monitor *Monitor
	conf    config.Config
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.GET("/config", getConfig)
	router.PUT("/config", setConfig)
	router.POST("/cleanup", postCleanup)
	router.POST("/cycle/clear", postClearCycle)
	router.GET("/history", getHistory)
	router.GET("/events", getEvents)
	router.GET("/version", getVersion)

	return router
}

// Run starts the daemon: config, history store, ingest subscription,
// consumer loops, and the HTTP control surface on a unix socket.
func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	fileConf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	conf = fileConf
	logrus.WithFields(fileConf.LogrusFields()).Infof("config loaded")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	var store history.Store
	if dbPath := conf.HistoryDBPath(); dbPath != "" {
		store, err = history.NewSQLiteStore(dbPath)
		if err != nil {
			logrus.Fatalf("failed to open history store: %v", err)
		}
	} else {
		logrus.Warn("no history database path configured, records will not survive restarts")
		store = history.NewMemoryStore()
	}

	monitor = NewMonitor(conf, store)

	source, err := ingest.NewMQTTSource(conf.MQTTBroker(), conf.ChargerTopic(), conf.TemperatureTopic())
	if err != nil {
		logrus.Fatalf("failed to connect to sample broker: %v", err)
	}

	runCtx, stopConsumers := context.WithCancel(context.Background())
	monitor.Run(runCtx, source)

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping ingest")
	stopConsumers()
	if err := source.Close(); err != nil {
		logrus.Errorf("failed to close ingest source: %v", err)
	}

	logrus.Info("flushing history writer")
	monitor.Shutdown()

	logrus.Info("closing history store")
	if err := store.Close(); err != nil {
		logrus.Errorf("failed to close history store: %v", err)
	}

	logrus.Info("saving config")
	if err := conf.Save(); err != nil {
		logrus.Errorf("failed to save config: %v", err)
	}

	logrus.Info("exiting")
	return nil
}
