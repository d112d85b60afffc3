package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPartnerInvitation(t *testing.T) {
	var got invitationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/invitations", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"inv_1"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIURL: srv.URL + "/", APIKey: "sk_test", RedirectURL: "https://app.example.com/welcome"}, srv.Client())
	err := client.SendPartnerInvitation(context.Background(), "pat@example.com", map[string]any{"role": "partner"})
	require.NoError(t, err)

	assert.Equal(t, "pat@example.com", got.EmailAddress)
	assert.Equal(t, "partner", got.PublicMetadata["role"])
	assert.Equal(t, "https://app.example.com/welcome", got.RedirectURL)
}

func TestSendPartnerInvitationNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"code":"duplicate_record"}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIURL: srv.URL, APIKey: "sk_test"}, srv.Client())
	err := client.SendPartnerInvitation(context.Background(), "pat@example.com", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "duplicate_record")
}

func TestSendPartnerInvitationNotConfigured(t *testing.T) {
	err := NewClient(Config{}, nil).SendPartnerInvitation(context.Background(), "pat@example.com", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
