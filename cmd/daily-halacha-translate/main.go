package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/neshkoli/daily-halacha-translate/internal/api"
	"github.com/neshkoli/daily-halacha-translate/internal/calendar"
	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/dedup"
	"github.com/neshkoli/daily-halacha-translate/internal/genai"
	"github.com/neshkoli/daily-halacha-translate/internal/lockfile"
	"github.com/neshkoli/daily-halacha-translate/internal/messaging"
	"github.com/neshkoli/daily-halacha-translate/internal/relay"
	"github.com/neshkoli/daily-halacha-translate/internal/scheduler"
	"github.com/neshkoli/daily-halacha-translate/internal/store"
	"github.com/neshkoli/daily-halacha-translate/internal/twiliowhatsapp"
	"github.com/neshkoli/daily-halacha-translate/internal/util"
	"github.com/neshkoli/daily-halacha-translate/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for service state data
	DefaultStateDir = "/var/lib/daily-halacha-translate"
	// DefaultDedupClearInterval is the default period for the dedup full clear
	DefaultDedupClearInterval = 30 * time.Minute
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// One instance per state directory; the SQLite files do not tolerate two.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("daily-halacha-translate failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("daily-halacha-translate exited successfully")
}

// run wires the modules together and serves until interrupted.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: DSN present selects SQLite or PostgreSQL, otherwise everything
	// stays in memory.
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	var gate dedup.Gate
	if _, ok := st.(*store.InMemoryStore); ok {
		gate = dedup.NewMemoryGate()
	} else {
		gate = dedup.NewStoreGate(st)
	}

	mediaStore, err := store.NewMediaStore(*flags.mediaDir, *flags.publicBaseURL, st)
	if err != nil {
		return err
	}

	platform, err := cloudapi.NewClient(
		cloudapi.WithToken(*flags.whatsappToken),
		cloudapi.WithPhoneNumberID(*flags.phoneNumberID),
	)
	if err != nil {
		return err
	}

	msgService, err := buildMessagingService(flags, platform)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	aiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	pipeline := relay.NewAudioPipeline(platform, aiClient, aiClient, msgService,
		relay.WithMediaStore(mediaStore),
	)
	dispatcher := relay.NewDispatcher(pipeline, calendar.NewClient())
	sender := relay.NewReplySender(msgService)
	rel := relay.NewRelay(gate, dispatcher, sender,
		relay.WithTextDedupWindow(util.ParseDurationEnv("TEXT_DEDUP_WINDOW", relay.DefaultTextDedupWindow)),
		relay.WithDeliveryRepo(st),
	)

	// Periodic full clear of the dedup gate. Entries are never expired
	// individually.
	sched := scheduler.NewScheduler()
	defer sched.Stop()
	clearInterval := util.ParseDurationEnv("DEDUP_CLEAR_INTERVAL", DefaultDedupClearInterval)
	if err := sched.AddEvery(clearInterval, func() {
		if err := gate.Clear(); err != nil {
			slog.Error("Dedup clear failed", "error", err)
		} else {
			slog.Info("Dedup gate cleared", "interval", clearInterval)
		}
	}); err != nil {
		return err
	}

	server := api.NewServer(rel, st,
		api.WithAddr(*flags.apiAddr),
		api.WithVerifyToken(*flags.verifyToken),
		api.WithMediaDir(*flags.mediaDir),
		api.WithDeliveryLimit(util.ParseIntEnv("DELIVERY_LIMIT", store.DefaultDeliveryLimit)),
	)

	slog.Info("Bootstrapping daily-halacha-translate",
		"api_addr", *flags.apiAddr,
		"backend", *flags.backend,
		"state_dir", *flags.stateDir,
		"dedup_clear_interval", clearInterval)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	VerifyToken   string
	WhatsAppToken string
	PhoneNumberID string
	OpenAIKey     string
	APIAddr       string
	StateDir      string
	DatabaseURL   string
	Backend       string
	TTSVoice      string
	PromptFile    string
	MediaDir      string
	PublicBaseURL string
}

// Flags holds command line flag values
type Flags struct {
	verifyToken   *string
	whatsappToken *string
	phoneNumberID *string
	openaiKey     *string
	apiAddr       *string
	stateDir      *string
	dbDSN         *string
	backend       *string
	ttsVoice      *string
	promptFile    *string
	mediaDir      *string
	publicBaseURL *string
	qrOutput      *string
	numeric       *bool
}

// initializeLogger sets up structured logging with the level from LOG_LEVEL.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		VerifyToken:   os.Getenv("VERIFY_TOKEN"),
		WhatsAppToken: os.Getenv("WHATSAPP_TOKEN"),
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		StateDir:      os.Getenv("STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Backend:       os.Getenv("MESSAGING_BACKEND"),
		TTSVoice:      os.Getenv("TTS_VOICE"),
		PromptFile:    os.Getenv("PROMPT_FILE"),
		MediaDir:      os.Getenv("MEDIA_DIR"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	if config.Backend == "" {
		config.Backend = "cloudapi"
	}
	if config.MediaDir == "" {
		config.MediaDir = filepath.Join(config.StateDir, "media")
	}

	slog.Debug("environment variables loaded",
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"WHATSAPP_TOKEN_SET", config.WhatsAppToken != "",
		"WHATSAPP_PHONE_NUMBER_ID_SET", config.PhoneNumberID != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MESSAGING_BACKEND", config.Backend,
		"MEDIA_DIR", config.MediaDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		verifyToken:   flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $VERIFY_TOKEN)"),
		whatsappToken: flag.String("whatsapp-token", config.WhatsAppToken, "platform access token (overrides $WHATSAPP_TOKEN)"),
		phoneNumberID: flag.String("phone-number-id", config.PhoneNumberID, "sending phone number ID (overrides $WHATSAPP_PHONE_NUMBER_ID)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for service data (overrides $STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the dedup/delivery store (overrides $DATABASE_URL)"),
		backend:       flag.String("backend", config.Backend, "outbound messaging backend: cloudapi, whatsmeow, or twilio (overrides $MESSAGING_BACKEND)"),
		ttsVoice:      flag.String("tts-voice", config.TTSVoice, "speech synthesis voice (overrides $TTS_VOICE)"),
		promptFile:    flag.String("prompt-file", config.PromptFile, "path to the voice prompt resource (overrides $PROMPT_FILE)"),
		mediaDir:      flag.String("media-dir", config.MediaDir, "directory for archived audio (overrides $MEDIA_DIR)"),
		publicBaseURL: flag.String("public-base-url", config.PublicBaseURL, "public base URL for served media (overrides $PUBLIC_BASE_URL)"),
		qrOutput:      flag.String("qr-output", "", "path to write login QR code (whatsmeow backend)"),
		numeric:       flag.Bool("numeric-code", util.ParseBoolEnv("NUMERIC_CODE", false), "use numeric login code instead of QR code (whatsmeow backend, overrides $NUMERIC_CODE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"apiAddr", *flags.apiAddr,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"backend", *flags.backend,
		"mediaDir", *flags.mediaDir)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dir := range []string{*flags.stateDir, *flags.mediaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildStore selects the storage backend from the DSN. No DSN means the
// in-memory store: dedup and delivery records are best-effort and need not
// survive a restart.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildMessagingService selects the outbound backend. Inbound traffic always
// arrives on the Cloud API webhook regardless of backend.
func buildMessagingService(flags Flags, platform *cloudapi.Client) (messaging.Service, error) {
	switch *flags.backend {
	case "", "cloudapi":
		return messaging.NewCloudAPIService(platform), nil

	case "whatsmeow":
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(waClient), nil

	case "twilio":
		twClient, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(twClient), nil

	default:
		slog.Warn("Unknown messaging backend, falling back to cloudapi", "backend", *flags.backend)
		return messaging.NewCloudAPIService(platform), nil
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.ttsVoice != "" {
		genaiOpts = append(genaiOpts, genai.WithVoice(*flags.ttsVoice))
	}
	if prompt := util.ReadTextFileOrDefault(*flags.promptFile, ""); prompt != "" {
		genaiOpts = append(genaiOpts, genai.WithVoicePrompt(prompt))
	}
	return genaiOpts
}
