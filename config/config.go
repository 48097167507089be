package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	TelegramToken  string
	TelegramChatID int64
	PushGatewayURL string
	DeviceID       string
	DatabasePath   string
	Timezone       *time.Location
	ServerPort     string
	ContentLead    time.Duration
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalendarPath   string
}

func Load() (*Config, error) {
	// Without a bot token the engine runs headless: local scheduling
	// only, push registration skipped.
	token := os.Getenv("TELEGRAM_BOT_TOKEN")

	var chatID int64
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
		chatID = id
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/gracebot.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	lead := 15 * time.Minute
	if v := os.Getenv("CONTENT_REMINDER_LEAD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CONTENT_REMINDER_LEAD: %w", err)
		}
		lead = d
	}

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		if host, err := os.Hostname(); err == nil {
			deviceID = host
		} else {
			deviceID = "gracebot"
		}
	}

	return &Config{
		TelegramToken:  token,
		TelegramChatID: chatID,
		PushGatewayURL: os.Getenv("PUSH_GATEWAY_URL"),
		DeviceID:       deviceID,
		DatabasePath:   dbPath,
		Timezone:       tz,
		ServerPort:     serverPort,
		ContentLead:    lead,
		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
		CalendarPath:   os.Getenv("CALDAV_CALENDAR_PATH"),
	}, nil
}
