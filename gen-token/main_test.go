package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban-api/api"
)

func TestSignedTokenIsAcceptedByAPI(t *testing.T) {
	opts := tokenOptions{secret: "s3cret", audience: "api://kanban", name: "Dev", ttl: time.Hour}
	tok, err := signToken(opts, "dev-user", time.Now())
	require.NoError(t, err)

	auth, err := api.NewAuth(api.AuthConfig{LocalSecret: []byte("s3cret"), Audience: "api://kanban"})
	require.NoError(t, err)
	id, err := auth.Authenticate("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.UserID)
	assert.Equal(t, "Dev", id.Name)
}

func TestSignTokenNeedsSecret(t *testing.T) {
	_, err := signToken(tokenOptions{ttl: time.Hour}, "u", time.Now())
	assert.Error(t, err)
}
