package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkbook/phonebook/server/auth"
	"github.com/wkbook/phonebook/server/mailer"
	"github.com/wkbook/phonebook/server/models"
)

type fakeMailer struct {
	sent []*mailer.Message
}

func (fm *fakeMailer) SendVerificationEmail(to, token string) (*mailer.Message, error) {
	msg := &mailer.Message{
		To:        to,
		From:      "noreply@phonebook.dev",
		Subject:   "Verify Your Email",
		PlainText: fmt.Sprintf("http://localhost:3000/users/verify/%v", token),
	}
	fm.sent = append(fm.sent, msg)

	return msg, nil
}

func initTestServer(t *testing.T) (*mux.Router, *fakeMailer) {
	t.Helper()

	models.InitializeTestDb()

	jwtSecret = "test-secret"
	publicDir = t.TempDir()
	stagingDir = t.TempDir()

	fm := &fakeMailer{}
	mailClient = fm

	return NewRouter(), fm
}

func doRequest(router *mux.Router, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr
}

func doJSONRequest(router *mux.Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	return doRequest(router, method, path, token, bytes.NewReader(payload))
}

func signUpTestUser(t *testing.T, router *mux.Router, email, password string) *models.User {
	t.Helper()

	rr := doJSONRequest(router, "POST", "/users/signup", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	user, err := models.FindUserBy("email", email)
	require.Nil(t, err)

	return user
}

func logInTestUser(t *testing.T, router *mux.Router, email, password string) string {
	t.Helper()

	rr := doJSONRequest(router, "POST", "/users/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	payload := LogInPayload{}
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Token)

	return payload.Token
}

// ---------------------------------------------------------------------------------//
// User route tests
// --------------------------------------------------------------------------------//

func TestSignUp(t *testing.T) {
	router, fm := initTestServer(t)

	rr := doJSONRequest(router, "POST", "/users/signup", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusCreated, rr.Code)

	payload := SignUpPayload{}
	assert.Nil(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "a@x.com", payload.User.Email)
	assert.Equal(t, models.DEFAULT_SUBSCRIPTION, payload.User.Subscription)

	// password & token never echoed back
	assert.NotContains(t, rr.Body.String(), "password")
	assert.NotContains(t, rr.Body.String(), "secret1")

	// verification email went out
	require.Len(t, fm.sent, 1)
	assert.Equal(t, "a@x.com", fm.sent[0].To)

	// repeating the same signup is a conflict & creates no duplicate
	rr = doJSONRequest(router, "POST", "/users/signup", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	errPayload := MessagePayload{}
	assert.Nil(t, json.Unmarshal(rr.Body.Bytes(), &errPayload))
	assert.Equal(t, "Email in use", errPayload.Message)
	assert.Len(t, fm.sent, 1, "Expected no second verification email")
}

func TestSignUpValidation(t *testing.T) {
	router, _ := initTestServer(t)

	rr := doJSONRequest(router, "POST", "/users/signup", "", map[string]string{
		"email":    "not-an-email",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(router, "POST", "/users/signup", "", map[string]string{
		"email":    "a@x.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogIn(t *testing.T) {
	router, _ := initTestServer(t)
	user := signUpTestUser(t, router, "stark@avengers.com", "very-secure")

	rr := doJSONRequest(router, "POST", "/users/login", "", map[string]string{
		"email":    "stark@avengers.com",
		"password": "very-secure",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	payload := LogInPayload{}
	assert.Nil(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "stark@avengers.com", payload.User.Email)

	// the token's subject must be the user's id
	claims, err := auth.DecodeJWT(payload.Token, jwtSecret)
	assert.Nil(t, err)
	assert.Equal(t, fmt.Sprint(user.ID), claims.Subject)
	assert.Equal(t, "stark@avengers.com", claims.Email)
}

func TestLogInFailuresShareOneShape(t *testing.T) {
	router, _ := initTestServer(t)
	signUpTestUser(t, router, "stark@avengers.com", "very-secure")

	wrongPassword := doJSONRequest(router, "POST", "/users/login", "", map[string]string{
		"email":    "stark@avengers.com",
		"password": "not-the-password",
	})
	unknownEmail := doJSONRequest(router, "POST", "/users/login", "", map[string]string{
		"email":    "nobody@avengers.com",
		"password": "very-secure",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String(),
		"Expected identical failure bodies, no account enumeration")
}

func TestCurrentUser(t *testing.T) {
	router, _ := initTestServer(t)
	signUpTestUser(t, router, "stark@avengers.com", "very-secure")
	token := logInTestUser(t, router, "stark@avengers.com", "very-secure")

	rr := doRequest(router, "GET", "/users/current", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	payload := UserPayload{}
	assert.Nil(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "stark@avengers.com", payload.Email)
	assert.Equal(t, models.DEFAULT_SUBSCRIPTION, payload.Subscription)
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	router, _ := initTestServer(t)
	user := signUpTestUser(t, router, "stark@avengers.com", "very-secure")
	token := logInTestUser(t, router, "stark@avengers.com", "very-secure")

	// no token
	rr := doRequest(router, "GET", "/users/current", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// garbage token
	rr = doRequest(router, "GET", "/users/current", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// valid token whose subject no longer exists
	require.Nil(t, models.DeleteUser(user.ID))
	rr = doRequest(router, "GET", "/users/current", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogOut(t *testing.T) {
	router, _ := initTestServer(t)
	signUpTestUser(t, router, "stark@avengers.com", "very-secure")
	token := logInTestUser(t, router, "stark@avengers.com", "very-secure")

	rr := doRequest(router, "GET", "/users/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	// logout does not revoke issued JWTs
	rr = doRequest(router, "GET", "/users/current", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestVerification(t *testing.T) {
	router, fm := initTestServer(t)
	user := signUpTestUser(t, router, "stark@avengers.com", "very-secure")
	require.NotNil(t, user.VerificationToken)

	token := *user.VerificationToken

	rr := doRequest(router, "GET", "/users/verify/"+token, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Verification successful")

	verified, err := models.FindUserBy("email", "stark@avengers.com")
	require.Nil(t, err)
	assert.True(t, verified.Verify)

	// the token is single-use
	rr = doRequest(router, "GET", "/users/verify/"+token, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// resending for a verified account is rejected
	rr = doJSONRequest(router, "POST", "/users/verify", "", map[string]string{"email": "stark@avengers.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Verification has already been passed")

	assert.Len(t, fm.sent, 1, "Expected only the signup email")
}

func TestResendVerificationEmail(t *testing.T) {
	router, fm := initTestServer(t)
	user := signUpTestUser(t, router, "stark@avengers.com", "very-secure")
	firstToken := *user.VerificationToken

	rr := doJSONRequest(router, "POST", "/users/verify", "", map[string]string{"email": "stark@avengers.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Verification email sent")
	assert.Len(t, fm.sent, 2)

	// a fresh token replaces the old one
	refreshed, err := models.FindUserBy("email", "stark@avengers.com")
	require.Nil(t, err)
	require.NotNil(t, refreshed.VerificationToken)
	assert.NotEqual(t, firstToken, *refreshed.VerificationToken)

	// missing email & unknown email
	rr = doJSONRequest(router, "POST", "/users/verify", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(router, "POST", "/users/verify", "", map[string]string{"email": "nobody@avengers.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateAvatar(t *testing.T) {
	router, _ := initTestServer(t)
	user := signUpTestUser(t, router, "stark@avengers.com", "very-secure")
	token := logInTestUser(t, router, "stark@avengers.com", "very-secure")

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("avatar", "avatar.png")
	require.Nil(t, err)
	require.Nil(t, png.Encode(part, testImage(600, 400)))
	require.Nil(t, writer.Close())

	req := httptest.NewRequest("PATCH", "/users/avatars", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	payload := AvatarPayload{}
	assert.Nil(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, fmt.Sprintf("/avatars/%v_avatar.png", user.ID), payload.AvatarURL)

	// resized file is in the public dir & the record points at it
	_, err = os.Stat(filepath.Join(publicDir, "avatars", fmt.Sprintf("%v_avatar.png", user.ID)))
	assert.Nil(t, err)

	updated, err := models.FindUserBy("id", user.ID)
	require.Nil(t, err)
	assert.Equal(t, payload.AvatarURL, updated.AvatarURL)
}

func TestResponseContentTypes(t *testing.T) {
	router, _ := initTestServer(t)

	// JSON endpoints declare application/json
	rr := doRequest(router, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	// served avatar files keep their image content type
	avatarsDir := filepath.Join(publicDir, "avatars")
	require.Nil(t, os.MkdirAll(avatarsDir, 0755))

	f, err := os.Create(filepath.Join(avatarsDir, "stored.png"))
	require.Nil(t, err)
	require.Nil(t, png.Encode(f, testImage(10, 10)))
	require.Nil(t, f.Close())

	rr = doRequest(router, "GET", "/avatars/stored.png", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
}

// ---------------------------------------------------------------------------------//
// Contact route tests
// --------------------------------------------------------------------------------//

func TestContactLifecycle(t *testing.T) {
	router, _ := initTestServer(t)

	rr := doJSONRequest(router, "POST", "/contacts", "", map[string]interface{}{
		"name":  "Tony Stark",
		"email": "stark@avengers.com",
		"phone": "+12345678900",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	created := struct {
		Data models.Contact `json:"data"`
	}{}
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotZero(t, created.Data.ID)

	contactPath := fmt.Sprintf("/contacts/%v", created.Data.ID)

	// GET by the returned id yields identical name/email/phone
	rr = doRequest(router, "GET", contactPath, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	fetched := struct {
		Data struct {
			Contact models.Contact `json:"contact"`
		} `json:"data"`
	}{}
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &fetched))
	assert.Equal(t, "Tony Stark", fetched.Data.Contact.Name)
	assert.Equal(t, "stark@avengers.com", fetched.Data.Contact.Email)
	assert.Equal(t, "+12345678900", fetched.Data.Contact.Phone)

	// PATCH with only favorite flips the flag without touching the rest
	rr = doJSONRequest(router, "PATCH", contactPath, "", map[string]interface{}{"favorite": true})
	require.Equal(t, http.StatusOK, rr.Code)

	patched := struct {
		Data models.Contact `json:"data"`
	}{}
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &patched))
	assert.True(t, patched.Data.Favorite)
	assert.Equal(t, "Tony Stark", patched.Data.Name)
	assert.Equal(t, "stark@avengers.com", patched.Data.Email)
	assert.Equal(t, "+12345678900", patched.Data.Phone)

	// DELETE removes it, a subsequent GET misses
	rr = doRequest(router, "DELETE", contactPath, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, "GET", contactPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(router, "DELETE", contactPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateContactValidation(t *testing.T) {
	router, _ := initTestServer(t)

	rr := doJSONRequest(router, "POST", "/contacts", "", map[string]interface{}{
		"email": "stark@avengers.com",
		"phone": "+12345678900",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing required name field")

	rr = doJSONRequest(router, "POST", "/contacts", "", map[string]interface{}{
		"name":  "Tony Stark",
		"email": "not-an-email",
		"phone": "+12345678900",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateContact(t *testing.T) {
	router, _ := initTestServer(t)

	contact := &models.Contact{Name: "Tony Stark", Email: "stark@avengers.com", Phone: "+12345678900"}
	require.Nil(t, models.CreateContact(contact))

	contactPath := fmt.Sprintf("/contacts/%v", contact.ID)

	rr := doJSONRequest(router, "PUT", contactPath, "", map[string]interface{}{"phone": "+10987654321"})
	assert.Equal(t, http.StatusOK, rr.Code)

	updated := struct {
		Data models.Contact `json:"data"`
	}{}
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "+10987654321", updated.Data.Phone)
	assert.Equal(t, "Tony Stark", updated.Data.Name)

	// unknown fields only → 400
	rr = doJSONRequest(router, "PUT", contactPath, "", map[string]interface{}{"nickname": "Iron Man"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing fields")

	// missing id → 404
	rr = doJSONRequest(router, "PUT", "/contacts/9999", "", map[string]interface{}{"name": "Nobody"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListContacts(t *testing.T) {
	router, _ := initTestServer(t)

	require.Nil(t, models.CreateContact(&models.Contact{Name: "Tony Stark", Email: "stark@avengers.com", Phone: "+12345678900", Favorite: true}))
	require.Nil(t, models.CreateContact(&models.Contact{Name: "Peter Parker", Email: "web@avengers.com", Phone: "+22345678900"}))

	rr := doRequest(router, "GET", "/contacts", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	listed := struct {
		Data struct {
			Contacts []models.Contact `json:"contacts"`
		} `json:"data"`
	}{}
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed.Data.Contacts, 2)

	rr = doRequest(router, "GET", "/contacts?favorite=true", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed.Data.Contacts, 1)
	assert.Equal(t, "Tony Stark", listed.Data.Contacts[0].Name)
}

func TestPatchContactValidation(t *testing.T) {
	router, _ := initTestServer(t)

	contact := &models.Contact{Name: "Tony Stark", Email: "stark@avengers.com", Phone: "+12345678900"}
	require.Nil(t, models.CreateContact(contact))

	rr := doJSONRequest(router, "PATCH", fmt.Sprintf("/contacts/%v", contact.ID), "", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing field favorite")

	rr = doJSONRequest(router, "PATCH", "/contacts/9999", "", map[string]interface{}{"favorite": true})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ---------------------------------------------------------------------------------//
// Test helpers
// --------------------------------------------------------------------------------//

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}

	return img
}
