package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"github.com/wkbook/phonebook/server/auth"
	"github.com/wkbook/phonebook/server/cron"
	"github.com/wkbook/phonebook/server/logger"
	"github.com/wkbook/phonebook/server/mailer"
	"github.com/wkbook/phonebook/server/models"
	"github.com/wkbook/phonebook/shared"
	"github.com/wkbook/phonebook/utils"
)

type RequestContextKey string

// DecodedJWT carries the outcome of bearer-token decoding through the
// request context; ErrorMsg is set when the request is unauthenticated.
type DecodedJWT struct {
	Claims   *auth.TokenClaims
	ErrorMsg string
}

// VerificationMailer sends account-verification emails.
type VerificationMailer interface {
	SendVerificationEmail(to, token string) (*mailer.Message, error)
}

var (
	logg     = logger.NewLogger(true)
	validate = validator.New()

	jwtSecret  string
	mailClient VerificationMailer
	publicDir  string
	stagingDir string
)

// Start boots the phonebook server: db migration, mailer, backup schedule,
// router & graceful shutdown on SIGINT/SIGTERM.
func Start(config *viper.Viper, devMode bool) {
	logg = logger.NewLogger(devMode)

	serverConfig := &shared.ServerConfig{}
	fatalOnError(config.Unmarshal(serverConfig))
	fatalOnError(validate.Struct(serverConfig))

	rootDir := configDirectory(devMode)
	fatalOnError(restoreSqliteBackup(serverConfig.Google, rootDir))
	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, rootDir))

	jwtSecret = serverConfig.Phonebook.JwtSecret
	mailClient = mailer.NewClient(serverConfig.Sendgrid, serverConfig.Phonebook.BaseURL, serverConfig.Sendgrid.ApiKey == "")

	publicDir = filepath.Join(rootDir, "public")
	stagingDir = filepath.Join(rootDir, "tmp")
	fatalOnError(utils.CreateDirIfNotExist(filepath.Join(publicDir, "avatars")))
	fatalOnError(utils.CreateDirIfNotExist(stagingDir))

	scheduler := cron.NewScheduler(serverConfig.Phonebook.Cron.TimeZone)
	fatalOnError(scheduleSqliteBackup(scheduler, serverConfig.Google, rootDir))
	scheduler.StartAsync()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Phonebook.Listener.Port),
		Handler: NewRouter(),
	}

	go serve(server)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cleanup(scheduler, server)
}

// NewRouter wires every route behind the logging & context middleware.
// Contact routes are deliberately outside the auth gate: contacts are a
// global collection, not scoped per user.
func NewRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, initialContextMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")

	router.HandleFunc("/contacts", listContacts).Methods("GET")
	router.HandleFunc("/contacts", createContact).Methods("POST")
	router.HandleFunc("/contacts/{id}", findContact).Methods("GET")
	router.HandleFunc("/contacts/{id}", updateContact).Methods("PUT")
	router.HandleFunc("/contacts/{id}", updateContactFavorite).Methods("PATCH")
	router.HandleFunc("/contacts/{id}", deleteContact).Methods("DELETE")

	router.HandleFunc("/users/signup", signUp).Methods("POST")
	router.HandleFunc("/users/login", logIn).Methods("POST")
	router.HandleFunc("/users/verify/{token}", verifyUser).Methods("GET")
	router.HandleFunc("/users/verify", resendVerificationEmail).Methods("POST")

	router.Handle("/users/current", protectedRouteMiddleware(http.HandlerFunc(currentUser))).Methods("GET")
	router.Handle("/users/logout", protectedRouteMiddleware(http.HandlerFunc(logOut))).Methods("GET")
	router.Handle("/users/avatars", protectedRouteMiddleware(http.HandlerFunc(updateAvatar))).Methods("PATCH")

	router.PathPrefix("/avatars/").Handler(
		http.StripPrefix("/avatars/", http.FileServer(http.Dir(filepath.Join(publicDir, "avatars")))))

	return router
}
