package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/liveroom/internal/participant"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	sessionID = configVar[string]{
		envKey:       "LIVEROOM_SESSION_ID",
		flagKey:      "session-id",
		defaultValue: "rehearsal",
	}
	participantID = configVar[string]{
		envKey:       "LIVEROOM_PARTICIPANT_ID",
		flagKey:      "participant-id",
		defaultValue: "",
	}
	host = configVar[bool]{
		envKey:       "LIVEROOM_HOST",
		flagKey:      "host",
		defaultValue: false,
	}
	relayURL = configVar[string]{
		envKey:       "LIVEROOM_RELAY_URL",
		flagKey:      "relay-url",
		defaultValue: "",
	}
	keepAlive = configVar[time.Duration]{
		envKey:       "LIVEROOM_KEEPALIVE",
		flagKey:      "keepalive",
		defaultValue: 10 * time.Second,
	}
	heartbeat = configVar[time.Duration]{
		envKey:       "LIVEROOM_HEARTBEAT",
		flagKey:      "heartbeat",
		defaultValue: 2 * time.Second,
	}
	clickOutput = configVar[string]{
		envKey:       "LIVEROOM_CLICK_OUTPUT",
		flagKey:      "click-output",
		defaultValue: "",
	}
	logLevel = configVar[string]{
		envKey:       "LIVEROOM_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadConfig() *participant.Config {
	pflag.String(sessionID.flagKey, sessionID.defaultValue, `Session to join: "rehearsal" or "<slot>_<monthly-id>"`)
	pflag.String(participantID.flagKey, participantID.defaultValue, "Participant id, defaults to the hostname")
	pflag.Bool(host.flagKey, host.defaultValue, "Join with playlist management permission")
	pflag.String(relayURL.flagKey, relayURL.defaultValue, "Relay server websocket url, empty joins through redis")
	pflag.Duration(keepAlive.flagKey, keepAlive.defaultValue, "Relay keepalive interval")
	pflag.Duration(heartbeat.flagKey, heartbeat.defaultValue, "Host snapshot re-publish interval while quiet, 0 disables it")
	pflag.String(clickOutput.flagKey, clickOutput.defaultValue, `Metronome PCM output: file path, "-" for stdout, empty to discard`)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(sessionID.flagKey, sessionID.envKey)
	viper.BindEnv(participantID.flagKey, participantID.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(relayURL.flagKey, relayURL.envKey)
	viper.BindEnv(keepAlive.flagKey, keepAlive.envKey)
	viper.BindEnv(heartbeat.flagKey, heartbeat.envKey)
	viper.BindEnv(clickOutput.flagKey, clickOutput.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(sessionID.flagKey, sessionID.defaultValue)
	viper.SetDefault(participantID.flagKey, participantID.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(relayURL.flagKey, relayURL.defaultValue)
	viper.SetDefault(keepAlive.flagKey, keepAlive.defaultValue)
	viper.SetDefault(heartbeat.flagKey, heartbeat.defaultValue)
	viper.SetDefault(clickOutput.flagKey, clickOutput.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &participant.Config{
		SessionID:     viper.GetString(sessionID.flagKey),
		ParticipantID: viper.GetString(participantID.flagKey),
		Host:          viper.GetBool(host.flagKey),
		RelayURL:      viper.GetString(relayURL.flagKey),
		KeepAlive:     viper.GetDuration(keepAlive.flagKey),
		Heartbeat:     viper.GetDuration(heartbeat.flagKey),
		ClickOutput:   viper.GetString(clickOutput.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}
	if config.ParticipantID == "" {
		config.ParticipantID, _ = os.Hostname()
	}

	return config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := loadConfig()

	jsonConfig, _ := json.MarshalIndent(config, "", "  ")
	fmt.Fprintf(os.Stderr, "joining with config: %s\n", jsonConfig)

	if err := participant.Run(ctx, config); err != nil {
		log.Fatal(err)
	}
}
