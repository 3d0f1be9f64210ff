package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/wkbook/phonebook/server/auth"
	"github.com/wkbook/phonebook/server/avatar"
	"github.com/wkbook/phonebook/server/models"
	"github.com/wkbook/phonebook/version"
	"gorm.io/gorm"
)

const MAX_UPLOAD_SIZE = 10 << 20 // 10 MB

type MessagePayload struct {
	Message string `json:"message"`
}

type DataPayload struct {
	Status string      `json:"status"`
	Code   int         `json:"code"`
	Data   interface{} `json:"data"`
}

type UserPayload struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
}

type SignUpPayload struct {
	User UserPayload `json:"user"`
}

type LogInPayload struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}

type AvatarPayload struct {
	AvatarURL string `json:"avatarURL"`
}

// Credentials is the signup/login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func healthCheck(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, map[string]string{"status": "ok", "version": version.Version}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Contact handlers
// --------------------------------------------------------------------------------//

func listContacts(rw http.ResponseWriter, r *http.Request) {
	var favorite *bool
	if val := r.URL.Query().Get("favorite"); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			writeResponse(rw, MessagePayload{Message: "favorite must be a boolean"}, http.StatusBadRequest)
			return
		}
		favorite = &parsed
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	contacts, err := models.AllContacts(favorite, page, pageSize)
	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, DataPayload{
		Status: "success",
		Code:   http.StatusOK,
		Data:   map[string]interface{}{"contacts": contacts},
	}, http.StatusOK)
}

func findContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	contact, err := models.FindContact(vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "Not found"}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, DataPayload{
		Status: "success",
		Code:   http.StatusOK,
		Data:   map[string]interface{}{"contact": contact},
	}, http.StatusOK)
}

func createContact(rw http.ResponseWriter, r *http.Request) {
	contact := models.Contact{}

	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		writeResponse(rw, MessagePayload{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(contact); err != nil {
		writeResponse(rw, MessagePayload{Message: validationMessage(err)}, http.StatusBadRequest)
		return
	}

	if err := models.CreateContact(&contact); err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, DataPayload{
		Status: "success",
		Code:   http.StatusCreated,
		Data:   contact,
	}, http.StatusCreated)
}

func updateContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]interface{})

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeResponse(rw, MessagePayload{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, models.UpdatableContactFields())
	if len(data) == 0 {
		writeResponse(rw, MessagePayload{Message: "missing fields"}, http.StatusBadRequest)
		return
	}

	if data["email"] != nil {
		if err := validate.Var(fmt.Sprintf("%v", data["email"]), "email"); err != nil {
			writeResponse(rw, MessagePayload{Message: "invalid email field"}, http.StatusBadRequest)
			return
		}
	}

	contact, err := models.UpdateContact(vars["id"], data)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "Not found"}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, DataPayload{
		Status: "success",
		Code:   http.StatusOK,
		Data:   contact,
	}, http.StatusOK)
}

func updateContactFavorite(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]interface{})

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeResponse(rw, MessagePayload{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	rawFavorite, present := data["favorite"]
	if !present {
		writeResponse(rw, MessagePayload{Message: "missing field favorite"}, http.StatusBadRequest)
		return
	}

	favorite, ok := rawFavorite.(bool)
	if !ok {
		writeResponse(rw, MessagePayload{Message: "favorite must be a boolean"}, http.StatusBadRequest)
		return
	}

	contact, err := models.UpdateContactFavorite(vars["id"], favorite)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "Not found"}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, DataPayload{
		Status: "success",
		Code:   http.StatusOK,
		Data:   contact,
	}, http.StatusOK)
}

func deleteContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := models.DeleteContact(vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "Not found"}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, MessagePayload{Message: "contact deleted"}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// User handlers
// --------------------------------------------------------------------------------//

func signUp(rw http.ResponseWriter, r *http.Request) {
	creds := Credentials{}

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeResponse(rw, MessagePayload{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(creds); err != nil {
		writeResponse(rw, MessagePayload{Message: validationMessage(err)}, http.StatusBadRequest)
		return
	}

	user := models.User{
		Email:     creds.Email,
		Password:  creds.Password,
		AvatarURL: avatar.GravatarURL(creds.Email),
	}

	// Uniqueness rides on the users.email constraint; no pre-check, so
	// concurrent signups with the same email cannot both win.
	err := models.CreateUser(&user)
	if models.IsDuplicateEmailErr(err) {
		writeResponse(rw, MessagePayload{Message: "Email in use"}, http.StatusConflict)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	verificationToken := uuid.NewString()
	if err = user.AssignVerificationToken(verificationToken); err != nil {
		writeInternalError(rw, err)
		return
	}

	if _, err = mailClient.SendVerificationEmail(user.Email, verificationToken); err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, SignUpPayload{
		User: UserPayload{Email: user.Email, Subscription: user.Subscription},
	}, http.StatusCreated)
}

func logIn(rw http.ResponseWriter, r *http.Request) {
	creds := Credentials{}

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeResponse(rw, MessagePayload{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(creds); err != nil {
		writeResponse(rw, MessagePayload{Message: validationMessage(err)}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("email", creds.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// same response as a wrong password, no account enumeration
		writeResponse(rw, MessagePayload{Message: "Email or password is wrong"}, http.StatusUnauthorized)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	passwordHash, err := models.FindUserPassword(creds.Email)
	if err != nil {
		writeInternalError(rw, err)
		return
	}

	if !auth.CheckPasswordHash(creds.Password, passwordHash) {
		writeResponse(rw, MessagePayload{Message: "Email or password is wrong"}, http.StatusUnauthorized)
		return
	}

	claims := auth.TokenClaims{
		Email:          user.Email,
		StandardClaims: jwt.StandardClaims{Subject: fmt.Sprint(user.ID)},
	}

	token, err := auth.EncodeJWT(claims, jwtSecret)
	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, LogInPayload{
		Token: token,
		User:  UserPayload{Email: user.Email, Subscription: user.Subscription},
	}, http.StatusOK)
}

func currentUser(rw http.ResponseWriter, r *http.Request) {
	user, err := models.FindUserBy("id", requestClaims(r).Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "Not authorized"}, http.StatusUnauthorized)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, UserPayload{Email: user.Email, Subscription: user.Subscription}, http.StatusOK)
}

func logOut(rw http.ResponseWriter, r *http.Request) {
	user, err := models.FindUserBy("id", requestClaims(r).Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "Not authorized"}, http.StatusUnauthorized)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	// Clears the legacy session token only; issued JWTs stay valid.
	if err = user.ClearSessionToken(); err != nil {
		writeInternalError(rw, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func updateAvatar(rw http.ResponseWriter, r *http.Request) {
	user, err := models.FindUserBy("id", requestClaims(r).Subject)
	if err != nil {
		writeInternalError(rw, err)
		return
	}

	if err = r.ParseMultipartForm(MAX_UPLOAD_SIZE); err != nil {
		writeInternalError(rw, err)
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeInternalError(rw, err)
		return
	}
	defer file.Close()

	stagedPath := filepath.Join(stagingDir, header.Filename)
	staged, err := os.Create(stagedPath)
	if err != nil {
		writeInternalError(rw, err)
		return
	}

	if _, err = io.Copy(staged, file); err != nil {
		staged.Close()
		writeInternalError(rw, err)
		return
	}

	if err = staged.Close(); err != nil {
		writeInternalError(rw, err)
		return
	}

	fileName := fmt.Sprintf("%v_%v", user.ID, header.Filename)
	avatarURL, err := avatar.Process(stagedPath, publicDir, fileName)
	if err != nil {
		writeInternalError(rw, err)
		return
	}

	if err = user.UpdateAvatarURL(avatarURL); err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, AvatarPayload{AvatarURL: avatarURL}, http.StatusOK)
}

func verifyUser(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := models.FindUserByVerificationToken(vars["token"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "User not found"}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	if err = user.MarkVerified(); err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, MessagePayload{Message: "Verification successful"}, http.StatusOK)
}

func resendVerificationEmail(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeResponse(rw, MessagePayload{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	email := data["email"]
	if email == "" {
		writeResponse(rw, MessagePayload{Message: "missing required field email"}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("email", email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, MessagePayload{Message: "User not found"}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeInternalError(rw, err)
		return
	}

	if user.Verify {
		writeResponse(rw, MessagePayload{Message: "Verification has already been passed"}, http.StatusBadRequest)
		return
	}

	verificationToken := uuid.NewString()
	if err = user.AssignVerificationToken(verificationToken); err != nil {
		writeInternalError(rw, err)
		return
	}

	if _, err = mailClient.SendVerificationEmail(user.Email, verificationToken); err != nil {
		writeInternalError(rw, err)
		return
	}

	writeResponse(rw, MessagePayload{Message: "Verification email sent"}, http.StatusOK)
}
