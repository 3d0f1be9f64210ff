package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator"
	"github.com/wkbook/phonebook/server/auth"
	"github.com/wkbook/phonebook/server/models"
	"github.com/wkbook/phonebook/utils"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payload interface{}, statusCode int) {
	if statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError {
		logg.Info(payload)
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payload)
}

// writeInternalError logs the underlying error & sends a generic 500 body,
// internal detail never reaches the client.
func writeInternalError(rw http.ResponseWriter, err error) {
	logg.Error(err)
	writeResponse(rw, MessagePayload{Message: "Internal Server Error"}, http.StatusInternalServerError)
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}

// validationMessage flattens the first validator error into the message
// shape the API exposes for 400s.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "invalid request body"
	}

	fieldErr := errs[0]
	field := strings.ToLower(fieldErr.Field())

	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("missing required %v field", field)
	case "min":
		return fmt.Sprintf("%v must be at least %v characters", field, fieldErr.Param())
	default:
		return fmt.Sprintf("invalid %v field", field)
	}
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

func decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], jwtSecret)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	_, err = models.FindUserBy("id", tokenClaims.Subject)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

// requestClaims returns the verified token claims attached by the
// context middleware. Only call from behind protectedRouteMiddleware.
func requestClaims(r *http.Request) *auth.TokenClaims {
	return r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT).Claims
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Phonebook server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(scheduler *gocron.Scheduler, server *http.Server) {
	// Stop pending backup jobs before the listener drains
	scheduler.Stop()

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Phonebook server shutdown failed:%+s", err)
	}

	logg.Infof("Phonebook server stopped properly")
}

// configDirectory retrieves the directory holding the db & public assets,
// or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'phonebook' folder in home directory for prod
	configFolderName := "phonebook"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
