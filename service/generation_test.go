package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scriptslap-server/models"
	"scriptslap-server/service"
	"scriptslap-server/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateRequest() *workflow.GenerateRequest {
	return &workflow.GenerateRequest{
		UserID:     userID,
		Topic:      "Coffee",
		YoutubeURL: "https://www.youtube.com/watch?v=abc",
	}
}

func TestGenerate_Success(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 10)

	res, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ScriptID)
	assert.Equal(t, "Script generation started successfully", res.Message)

	assert.Equal(t, 7, e.store.Credits(userID))

	sc, err := e.store.GetScript(context.Background(), res.ScriptID)
	require.NoError(t, err)
	assert.Equal(t, models.ScriptStatusGeneratingScript, sc.GenerationStatus)
	assert.Equal(t, "Coffee - English Standard Video", sc.ScriptTitle)
	require.NotNil(t, sc.StyleFingerprintID)

	videos := e.store.SourceVideos()
	require.Len(t, videos, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", videos[0].YoutubeURL)
	fps := e.store.Fingerprints()
	require.Len(t, fps, 1)
	assert.Equal(t, "Style from https://www.youtube.com/watch?v=abc", fps[0].FingerprintName)

	payloads := e.dispatcher.Payloads()
	require.Len(t, payloads, 1)
	p, ok := payloads[0].(workflow.GeneratePayload)
	require.True(t, ok)
	assert.Equal(t, res.ScriptID, p.ScriptID)
	assert.Equal(t, workflow.DefaultLanguage, p.Language)

	require.Len(t, e.scheduler.Jobs, 1)
	assert.Equal(t, service.TypeScriptWatchdog, e.scheduler.Jobs[0].Kind)

	reservations := e.store.Reservations()
	require.Len(t, reservations, 1)
	assert.Equal(t, models.ReservationConfirmed, reservations[0].Status)
	assert.Equal(t, res.ScriptID, reservations[0].ResourceID)
}

func TestGenerate_WithoutVideoSkipsFingerprint(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 3)

	req := generateRequest()
	req.YoutubeURL = ""
	res, err := e.generation.Generate(context.Background(), principal(userID), req, "")
	require.NoError(t, err)

	sc, err := e.store.GetScript(context.Background(), res.ScriptID)
	require.NoError(t, err)
	assert.Nil(t, sc.StyleFingerprintID)
	assert.Empty(t, e.store.SourceVideos())
	assert.Equal(t, 0, e.store.Credits(userID))
}

func TestGenerate_MissingFields(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 10)

	for name, req := range map[string]*workflow.GenerateRequest{
		"no topic":   {UserID: userID, Topic: "   "},
		"no user id": {Topic: "Coffee"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.generation.Generate(context.Background(), principal(userID), req, "")
			var ve *service.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "Missing required fields", ve.Message)
		})
	}
	assert.Empty(t, e.dispatcher.Payloads())
	assert.Empty(t, e.store.Scripts())
	assert.Equal(t, 10, e.store.Credits(userID))
}

func TestGenerate_RejectsValuesLongerThanColumns(t *testing.T) {
	long := map[string]func(*workflow.GenerateRequest) (string, string){
		"topic": func(r *workflow.GenerateRequest) (string, string) {
			r.Topic = strings.Repeat("t", 256)
			return "topic", ""
		},
		"youtubeUrl": func(r *workflow.GenerateRequest) (string, string) {
			r.YoutubeURL = "https://www.youtube.com/watch?v=" + strings.Repeat("a", 500)
			return "youtubeUrl", ""
		},
		"idempotency key": func(*workflow.GenerateRequest) (string, string) {
			return "Idempotency-Key", strings.Repeat("k", service.MaxIdempotencyKeyLength+1)
		},
	}
	for name, mutate := range long {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			e.store.AddProfile(userID, 10)

			req := generateRequest()
			field, key := mutate(req)
			_, err := e.generation.Generate(context.Background(), principal(userID), req, key)
			var ve *service.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, field)
			assert.Equal(t, 10, e.store.Credits(userID))
			assert.Empty(t, e.store.Scripts())
			assert.Empty(t, e.dispatcher.Payloads())
		})
	}
}

func TestGenerate_UserMismatch(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 10)

	_, err := e.generation.Generate(context.Background(), principal(otherID), generateRequest(), "")
	assert.ErrorIs(t, err, service.ErrUserMismatch)
	assert.Empty(t, e.dispatcher.Payloads())
}

func TestGenerate_MissingProfile(t *testing.T) {
	e := newEnv(t)

	_, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "")
	assert.ErrorIs(t, err, models.ErrProfileNotFound)
	assert.Empty(t, e.dispatcher.Payloads())
}

func TestGenerate_InsufficientCredits(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 2)

	_, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "")
	var ice *models.InsufficientCreditsError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, 3, ice.Needed)
	assert.Equal(t, 2, ice.Available)

	assert.Equal(t, 2, e.store.Credits(userID))
	assert.Empty(t, e.store.Scripts())
	assert.Empty(t, e.dispatcher.Payloads())
}

func TestGenerate_WebhookFailureRefunds(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 5)
	e.dispatcher.Err = &workflow.WebhookError{Operation: workflow.OpGenerate, StatusCode: 502, Body: "bad gateway"}

	_, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "")
	var de *service.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Failed to trigger script generation via webhook", de.Message)
	var we *workflow.WebhookError
	assert.True(t, errors.As(err, &we))

	assert.Equal(t, 5, e.store.Credits(userID))
	scripts := e.store.Scripts()
	require.Len(t, scripts, 1)
	assert.Equal(t, models.ScriptStatusError, scripts[0].GenerationStatus)
	assert.Empty(t, e.scheduler.Jobs)

	reservations := e.store.Reservations()
	require.Len(t, reservations, 1)
	assert.Equal(t, models.ReservationReleased, reservations[0].Status)
}

func TestGenerate_IdempotentReplay(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 10)

	first, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "key-1")
	require.NoError(t, err)
	second, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.ScriptID, second.ScriptID)
	assert.Equal(t, 7, e.store.Credits(userID))
	assert.Len(t, e.dispatcher.Payloads(), 1)
	assert.Len(t, e.store.Scripts(), 1)
}

func TestGenerate_FailedKeyCanBeRetried(t *testing.T) {
	e := newEnv(t)
	e.store.AddProfile(userID, 10)
	e.dispatcher.Err = errors.New("connection refused")

	_, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "key-1")
	require.Error(t, err)

	e.dispatcher.Err = nil
	res, err := e.generation.Generate(context.Background(), principal(userID), generateRequest(), "key-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ScriptID)
	assert.Equal(t, 7, e.store.Credits(userID))
}
