package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "roomsense/internal/adapter/actor"
	"roomsense/internal/config"
	"roomsense/internal/core/actor"
	"roomsense/internal/core/domain"
	"roomsense/internal/core/service"
	"roomsense/internal/mqtt"
	"roomsense/internal/server"
	"roomsense/internal/store"
	"roomsense/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	defer logger.Sync()

	// open document store
	docStore, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("could not open document store", zap.Error(err))
	}
	defer docStore.Close()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// the broker client reports lifecycle and messages on the
	// eventstream; actors pick them up from their own mailboxes
	es := &eventstream.EventStream{}
	client := mqtt.CreateClient(cfg, mqtt.OptsFromConfig(cfg), func() {
		es.Publish(domain.BrokerConnectedEvent{})
	}, func(err error) {
		es.Publish(domain.BrokerConnectionLostEvent{Err: err})
	}, func(topic string, payload []byte) {
		es.Publish(domain.BrokerMessageEvent{Topic: topic, Payload: payload})
	})

	dispatcher := service.NewCommandDispatcher(client, docStore, client.Topics, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, docStore, es, dispatcher, brokerActorProvider(cfg, client, docStore, es, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => ROOMSENSE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ROOMSENSE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("roomsense")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix topic scheme
	scheme, err := config.CheckTopicScheme(cfg.MQTT.TopicScheme)
	if err != nil {
		return nil, err
	}
	cfg.MQTT.TopicScheme = scheme

	// check bounds
	if cfg.MQTT.KeepAliveSecs < 5 {
		return nil, errors.New("config param mqtt.keep_alive_secs should be >= 5")
	}
	if cfg.MQTT.ReconnectDelaySecs < 1 {
		return nil, errors.New("config param mqtt.reconnect_delay_secs should be >= 1")
	}
	if cfg.ClockSync.Enable && cfg.ClockSync.IntervalMins < 1 {
		return nil, errors.New("config param clock_sync.interval_mins should be >= 1")
	}
	if cfg.Store.Path == "" {
		return nil, errors.New("config param store.path is required")
	}

	return &cfg, nil
}

func brokerActorProvider(cfg *config.Config, client *mqtt.Client, docStore *store.SQLiteStore,
	es *eventstream.EventStream, logger *zap.Logger) actor.BrokerActorProvider {
	return func() pactor.Actor {
		return adactor.NewBrokerActor(cfg, client, client.Topics, docStore, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.keep_alive_secs", 30)
	viper.SetDefault("mqtt.reconnect_delay_secs", 5)
	viper.SetDefault("mqtt.base_topic", "DATALOGGER")
	viper.SetDefault("mqtt.topic_scheme", config.TopicSchemeCombined)
	viper.SetDefault("mqtt.publish_timeout_millis", 5000)
	viper.SetDefault("store.path", "roomsense.db")
	viper.SetDefault("clock_sync.enable", false)
	viper.SetDefault("clock_sync.interval_mins", 60)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
