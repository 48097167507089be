package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/antufev/gracebot/config"
	"github.com/antufev/gracebot/internal/category"
	"github.com/antufev/gracebot/internal/clients/caldav"
	"github.com/antufev/gracebot/internal/clients/pushgateway"
	"github.com/antufev/gracebot/internal/platform"
	"github.com/antufev/gracebot/internal/push"
	"github.com/antufev/gracebot/internal/router"
	"github.com/antufev/gracebot/internal/scheduler"
	"github.com/antufev/gracebot/internal/server"
	"github.com/antufev/gracebot/internal/service"
	"github.com/antufev/gracebot/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		// An unreadable database never blocks startup; reminders just
		// will not survive the next restart.
		log.Printf("Failed to open reminder store, falling back to in-memory: %v", err)
		store, err = storage.New(":memory:")
		if err != nil {
			log.Fatalf("Failed to init storage: %v", err)
		}
	}
	defer store.Close()

	categories := category.NewRegistry()
	actions := router.New()

	// Without a bot token the engine runs on the headless platform:
	// local scheduling only, push registration skipped.
	var pl platform.Platform
	var tg *platform.Telegram
	if cfg.TelegramToken != "" {
		tg, err = platform.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, categories)
		if err != nil {
			log.Fatalf("Failed to init telegram platform: %v", err)
		}
		pl = tg
	} else {
		pl = platform.NewHeadless()
	}

	sched := scheduler.New(cfg.Timezone, pl)
	gateway := pushgateway.NewClient(cfg.PushGatewayURL)
	registrar := push.NewRegistrar(pl, gateway, cfg.DeviceID)

	svc := service.NewNotificationService(
		store, sched, pl, registrar, categories, actions,
		cfg.ContentLead, cfg.Timezone,
	)
	if gateway.IsConfigured() {
		svc.SetPushClient(gateway)
	}

	var caldavClient *caldav.Client
	if cfg.CalDAVURL != "" {
		caldavClient = caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		path := cfg.CalendarPath
		if path == "" {
			cals, err := caldavClient.DiscoverCalendars(context.Background())
			if err != nil || len(cals) == 0 {
				log.Printf("CalDAV calendar discovery failed, publishing disabled: %v", err)
			} else {
				path = cals[0].Path
				log.Printf("Publishing reminders to calendar %q", cals[0].DisplayName)
			}
		}
		caldavClient.SetCalendarPath(path)
	}
	cal := service.NewCalendarService(store, caldavClient, cfg.Timezone)
	svc.SetCalendarService(cal)

	actions.SetDefault(func(payload map[string]string) error {
		log.Printf("Notification opened: %v", payload)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Init(ctx); err != nil {
		log.Fatalf("Failed to init notification engine: %v", err)
	}
	sched.Start()

	if tg != nil {
		go func() {
			if err := tg.Start(ctx); err != nil {
				log.Printf("Telegram platform error: %v", err)
			}
		}()
	}

	srv := server.New(svc, cal, cfg.ServerPort)
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("GraceBot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	if tg != nil {
		tg.Stop()
	}
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	log.Println("GraceBot stopped")
}
