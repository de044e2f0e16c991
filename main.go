// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/djamal195/last/cache"
	"github.com/djamal195/last/cloudinary"
	"github.com/djamal195/last/dalle"
	"github.com/djamal195/last/imdb"
	"github.com/djamal195/last/mistral"
	"github.com/djamal195/last/sheets"
	"github.com/djamal195/last/youtube"
)

var (
	mongoClient *mongo.Client
	userStore   *UserStore
	videoStore  *VideoStore
	convStore   *ConversationStore

	mistralClient     *mistral.Client
	ytClient          *youtube.Client
	ytDownloader      *youtube.Downloader
	cloudinaryService *cloudinary.Service
	imdbClient        *imdb.Client
	dalleClient       *dalle.Client
	sheetsService     *sheets.Service

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
	}
	config Config
)

type Config struct {
	MongoURI          string
	MongoDatabase     string
	FacebookAppSecret string
	VerifyToken       string
	PageAccessToken   string
	MistralAPIKey     string
	YoutubeAPIKey     string

	// Optional features, enabled when their credentials are present.
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	RapidAPIKey         string
	SheetsCredentials   string
	SheetsID            string
	SheetsWorksheet     string

	Port string
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
}

func loadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Printf("💡 Using platform environment variables (no .env file)")
	}

	config = Config{
		MongoURI:          getEnvOrDie("MONGODB_URI"),
		MongoDatabase:     getEnvOrDefault("MONGODB_DB_NAME", "chatbot"),
		FacebookAppSecret: getEnvOrDie("FACEBOOK_APP_SECRET"),
		VerifyToken:       getEnvOrDie("MESSENGER_VERIFY_TOKEN"),
		PageAccessToken:   getEnvOrDie("MESSENGER_PAGE_ACCESS_TOKEN"),
		MistralAPIKey:     getEnvOrDie("MISTRAL_API_KEY"),
		YoutubeAPIKey:     getEnvOrDie("YOUTUBE_API_KEY"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		RapidAPIKey:         os.Getenv("RAPIDAPI_KEY"),
		SheetsCredentials:   os.Getenv("GOOGLE_SHEETS_CREDENTIALS"),
		SheetsID:            os.Getenv("GOOGLE_SHEETS_ID"),
		SheetsWorksheet:     getEnvOrDefault("GOOGLE_SHEETS_WORKSHEET", "Demandes"),

		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func getEnvOrDie(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("❌ %s environment variable is not set", key)
	}
	return value
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func setupDatabase(ctx context.Context) {
	var err error
	for i := 0; i < 3; i++ {
		log.Printf("🔄 Database connection attempt %d/3...", i+1)

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoClient, err = connectMongo(connectCtx, config.MongoURI)
		cancel()

		if err == nil {
			log.Printf("✅ Successfully connected to MongoDB!")
			break
		}
		log.Printf("❌ Connection attempt %d failed: %v", i+1, err)
		time.Sleep(time.Second * 2)
	}
	if err != nil {
		log.Fatal("❌ Failed to connect to database after 3 attempts")
	}

	db := mongoClient.Database(config.MongoDatabase)
	if err := ensureIndexes(ctx, db); err != nil {
		log.Fatalf("❌ Failed to create indexes: %v", err)
	}

	userStore = NewUserStore(db)
	videoStore = NewVideoStore(db)
	convStore = NewConversationStore(db)
}

func setupClients(ctx context.Context) {
	mistralClient = mistral.New(config.MistralAPIKey)

	var err error
	ytClient, err = youtube.New(ctx, config.YoutubeAPIKey)
	if err != nil {
		log.Fatalf("❌ Failed to create YouTube client: %v", err)
	}
	ytDownloader = youtube.NewDownloader()

	if config.CloudinaryCloudName != "" {
		cloudinaryService, err = cloudinary.New(
			config.CloudinaryCloudName, config.CloudinaryAPIKey, config.CloudinaryAPISecret)
		if err != nil {
			log.Fatalf("❌ Failed to create Cloudinary client: %v", err)
		}
		log.Printf("✅ Video hosting enabled (cloud: %s)", config.CloudinaryCloudName)
	} else {
		log.Printf("💡 Cloudinary not configured, downloads will fall back to YouTube links")
	}

	if config.RapidAPIKey != "" {
		imdbConfig := imdb.DefaultConfig()
		imdbConfig.APIKey = config.RapidAPIKey
		imdbClient = imdb.New(imdbConfig)

		dalleConfig := dalle.DefaultConfig()
		dalleConfig.APIKey = config.RapidAPIKey
		dalleClient = dalle.New(dalleConfig)

		log.Printf("✅ IMDb search and image generation enabled")
	} else {
		log.Printf("💡 RAPIDAPI_KEY not set, /imdb and /image commands disabled")
	}

	if config.SheetsCredentials != "" && config.SheetsID != "" {
		sheetsService, err = sheets.New(ctx,
			[]byte(config.SheetsCredentials), config.SheetsID, config.SheetsWorksheet)
		if err != nil {
			log.Fatalf("❌ Failed to create Sheets client: %v", err)
		}
		log.Printf("✅ Movie request log enabled")
	} else {
		log.Printf("💡 Google Sheets not configured, movie requests will not be logged")
	}
}

func recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("❌ PANIC RECOVERED: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// historyJanitor prunes stale conversation memory once an hour.
func historyJanitor(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		cleanCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if _, err := convStore.ClearOldHistories(cleanCtx); err != nil {
			LogError("❌ History cleanup failed: %v", err)
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func main() {
	log.Printf("🚀 Starting Messenger bot...")

	loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupDatabase(ctx)
	cache.InitRedis()
	setupClients(ctx)

	go historyJanitor(ctx)

	router := http.NewServeMux()
	router.HandleFunc("/webhook", recoverMiddleware(validateFacebookRequest(handleWebhook)))
	router.HandleFunc("/healthz", handleHealthz)

	srv := &http.Server{
		Addr:    ":" + config.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🌐 Server starting on port %s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("🛑 Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		LogError("❌ Server shutdown failed: %v", err)
	}

	cache.Close()
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		LogError("❌ MongoDB disconnect failed: %v", err)
	}

	log.Printf("👋 Shutdown complete")
}
