package service_test

import (
	"testing"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/models"
	"scriptslap-server/service"
	"scriptslap-server/service/servicetest"

	"go.uber.org/zap"
)

const (
	userID  = "user-1"
	otherID = "user-2"
)

const sampleBody = `{"output":{"title":"Coffee","hook":"Old hook","main_body":"1. Origins\nCoffee began in Ethiopia.\n\n2. Today\nIt is everywhere.","call_to_action":"Subscribe","b_roll_suggestions":["beans"]}}`

var costs = service.CreditCosts{Generate: 3, Refine: 1}

type env struct {
	store      *servicetest.MemoryStore
	dispatcher *servicetest.Dispatcher
	scheduler  *servicetest.Scheduler
	guard      *servicetest.Guard
	objects    *servicetest.ObjectStore

	generation *service.GenerationService
	refinement *service.RefinementService
	editor     *service.EditorService
	history    *service.HistoryService
	callbacks  *service.CallbackService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zap.NewNop()
	e := &env{
		store:      servicetest.NewMemoryStore(),
		dispatcher: &servicetest.Dispatcher{},
		scheduler:  &servicetest.Scheduler{},
		guard:      &servicetest.Guard{},
		objects:    &servicetest.ObjectStore{},
	}
	e.generation = service.NewGenerationService(e.store, e.dispatcher, e.scheduler, costs, 20*time.Minute, log)
	e.refinement = service.NewRefinementService(e.store, e.dispatcher, e.scheduler, e.guard, costs, 5*time.Minute, time.Minute, log)
	e.editor = service.NewEditorService(e.store, e.objects, log)
	e.history = service.NewHistoryService(e.store, log)
	e.callbacks = service.NewCallbackService(e.store, "hook-secret", log)
	return e
}

func principal(id string) auth.Principal {
	return auth.Principal{UserID: id}
}

// completeScript seeds a finished script owned by owner.
func (e *env) completeScript(id, owner string) models.GeneratedScript {
	sc := models.GeneratedScript{
		ID:                 id,
		UserID:             owner,
		ScriptTitle:        "Coffee - English Standard Video",
		Topic:              "Coffee",
		Language:           "English",
		VideoLength:        "Standard Video",
		ScriptBodyMarkdown: sampleBody,
		GenerationStatus:   models.ScriptStatusComplete,
		Version:            1,
	}
	e.store.PutScript(sc)
	return sc
}

func intPtr(i int) *int { return &i }
