package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"climate-server/internal/config"
	db "climate-server/internal/db"
	httpapi "climate-server/internal/httpapi"
	climate "climate-server/internal/modules/climate"
	"climate-server/internal/modules/climate/bridge"
	climateviews "climate-server/internal/modules/climate/views"
	"climate-server/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"dbLogSQL", cfg.LogSQL,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttRequestTopic", cfg.MQTTRequestTopic,
	)
	dbConn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := db.VerifySchema(ctx, dbConn); err != nil {
		return err
	}
	slog.Info("database connection successful")

	if err := climateviews.LoadTemplates(); err != nil {
		return err
	}
	mux := httpapi.NewMux(dbConn)
	climateService := climate.RegisterFeature(mux, dbConn)

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled() {
		mqttClient = startBridge(ctx, cfg, climateService)
	}

	metrics, err := httpapi.NewMetrics()
	if err != nil {
		return err
	}
	srv := httpapi.NewServer(cfg, mux, metrics)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if mqttClient != nil {
			mqttClient.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mqttClient != nil {
		slog.Info("mqtt disconnecting")
		mqttClient.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// startBridge never fails startup: a broker that is down only costs the MQTT
// transport, and the client keeps retrying in the background.
func startBridge(ctx context.Context, cfg config.Config, service bridge.QueryService) *mqtt.Client {
	client := mqtt.NewClient(cfg, slog.Default())
	queryBridge := bridge.New(service, client, cfg.MQTTResponseTopic, slog.Default())

	// Subscribe before connecting so the connect callback picks the topic up.
	if err := queryBridge.Attach(ctx, client, cfg.MQTTRequestTopic); err != nil {
		slog.Warn("mqtt bridge attach failed", "error", err)
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	if err := client.Connect(connectCtx); err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}
	return client
}
