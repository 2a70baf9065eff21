package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/skycast/internal/handlers/testutil"
)

func TestUserHandler_Register(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/users", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "secret1",
		"location": "Lisbon", "tempUnit": "C", "windUnit": "kmh",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &user)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "Lisbon", user.Location)
	require.Equal(t, "C", user.TempUnit)
	require.Equal(t, "kmh", user.WindUnit)
	require.NotContains(t, w.Body.String(), "secret1")

	dup := env.Request(http.MethodPost, "/users", map[string]string{
		"name": "Other", "email": "alice@example.com", "password": "secret2",
	}, "")
	require.Equal(t, http.StatusConflict, dup.Code)
	require.Equal(t, "EMAIL_TAKEN", testutil.ErrorCode(t, dup))

	bad := env.Request(http.MethodPost, "/users", map[string]string{
		"name": "Bad", "email": "bad@example.com", "password": "secret1", "tempUnit": "K",
	}, "")
	require.Equal(t, http.StatusBadRequest, bad.Code)
	require.Contains(t, testutil.DecodeResponse(t, bad).Error.Message, "tempUnit must be one of: F, C")

	blank := env.Request(http.MethodPost, "/users", map[string]string{
		"name": "  ", "email": "blank@example.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusBadRequest, blank.Code)
}

func TestUserHandler_SelfService(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.Register("Alice", "alice@example.com", "secret1")
	bob := env.Register("Bob", "bob@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")

	get := env.Request(http.MethodGet, "/users/"+alice.ID, nil, token)
	require.Equal(t, http.StatusOK, get.Code, get.Body.String())

	other := env.Request(http.MethodGet, "/users/"+bob.ID, nil, token)
	require.Equal(t, http.StatusForbidden, other.Code)

	patch := env.Request(http.MethodPatch, "/users/"+alice.ID, map[string]string{"location": "Porto", "tempUnit": "C"}, token)
	require.Equal(t, http.StatusOK, patch.Code, patch.Body.String())
	var updated testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, patch).Data, &updated)
	require.Equal(t, "Porto", updated.Location)
	require.Equal(t, "C", updated.TempUnit)
	require.Equal(t, "mph", updated.WindUnit)
	require.Equal(t, "Alice", updated.Name)

	otherPatch := env.Request(http.MethodPatch, "/users/"+bob.ID, map[string]string{"name": "Mallory"}, token)
	require.Equal(t, http.StatusForbidden, otherPatch.Code)

	noAuth := env.Request(http.MethodGet, "/users/"+alice.ID, nil, "")
	require.Equal(t, http.StatusUnauthorized, noAuth.Code)
}

func TestUserHandler_ChangePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.Register("Alice", "alice@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")

	wrong := env.Request(http.MethodPost, "/users/"+alice.ID+"/password", map[string]string{
		"currentPassword": "nope", "newPassword": "n3wSecret",
	}, token)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)

	ok := env.Request(http.MethodPost, "/users/"+alice.ID+"/password", map[string]string{
		"currentPassword": "secret1", "newPassword": "n3wSecret",
	}, token)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())

	require.NotEmpty(t, env.Login("alice@example.com", "n3wSecret"))
}

func TestUserHandler_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.Register("Alice", "alice@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")

	del := env.Request(http.MethodDelete, "/users/"+alice.ID, nil, token)
	require.Equal(t, http.StatusOK, del.Code, del.Body.String())

	// the token outlives the account but no longer resolves to a user
	me := env.Request(http.MethodGet, "/auth/me", nil, token)
	require.Equal(t, http.StatusUnauthorized, me.Code)

	login := env.Request(http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusUnauthorized, login.Code)
}

func TestUserHandler_RejectsOverlongPasswords(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/users", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": strings.Repeat("p", 73),
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "BAD_REQUEST", testutil.ErrorCode(t, w))

	alice := env.Register("Alice", "alice@example.com", strings.Repeat("p", 72))
	token := env.Login("alice@example.com", strings.Repeat("p", 72))

	w = env.Request(http.MethodPost, "/users/"+alice.ID+"/password", map[string]string{
		"currentPassword": strings.Repeat("p", 72), "newPassword": strings.Repeat("€", 30),
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
