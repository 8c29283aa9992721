package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/webskill/backend/internal/companion"
	"github.com/zhouzirui/webskill/backend/internal/config"
	"github.com/zhouzirui/webskill/backend/internal/service/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	holder := relay.NewHolder()
	rl := relay.New(holder,
		relay.WithInterval(cfg.Companion.FlushInterval),
		relay.WithErrorHandler(func(err error) {
			log.Printf("[companion] failed to send log batch: %v", err)
		}),
	)
	logger := relay.NewFanout(relay.NewScreenSink(os.Stdout), rl)

	client, err := companion.Dial(ctx, cfg.Companion.ServerURL, "", nil)
	if err != nil {
		logger.Log("Failed to initialize Alexa client: " + err.Error())
		return
	}
	defer client.Close()
	// runs before client.Close: pending lines go out on the open connection
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rl.Close(closeCtx); err != nil {
			log.Printf("[companion] failed to flush logs: %v", err)
		}
	}()

	if err := holder.SetReady(client); err != nil {
		logger.Log("Failed to initialize Alexa client: " + err.Error())
		return
	}

	client.OnMessage(func(msg json.RawMessage) {
		logger.Log(string(msg))
	})
	logger.Log("Alexa is ready :) Received initial data: session " + client.SessionID())

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Log("Connection lost: " + err.Error())
	}
}
