package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/models"
	"scriptslap-server/routers/api"
	"scriptslap-server/service"
	"scriptslap-server/service/servicetest"
	"scriptslap-server/workflow"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testSecret   = "test-jwt-secret"
	hookSecret   = "hook-secret"
	testUser     = "user-1"
	sampleOutput = `{"output":{"title":"Coffee","hook":"Old hook","main_body":"1. Origins\nCoffee began in Ethiopia.\n\n2. Today\nIt is everywhere.","call_to_action":"Subscribe"}}`
)

func init() {
	gin.SetMode(gin.TestMode)
}

type RouterSuite struct {
	suite.Suite

	store    *servicetest.MemoryStore
	webhook  *httptest.Server
	status   atomic.Int32
	hits     atomic.Int32
	authn    *auth.JWTAuthenticator
	router   *gin.Engine
	objects  *servicetest.ObjectStore
	userAuth string
}

func (s *RouterSuite) SetupTest() {
	log := zap.NewNop()
	s.status.Store(http.StatusOK)
	s.hits.Store(0)
	s.webhook = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		code := int(s.status.Load())
		w.WriteHeader(code)
		if code >= 300 {
			_, _ = w.Write([]byte(`{"message":"Workflow could not be started"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Workflow was started"}`))
	}))

	s.store = servicetest.NewMemoryStore()
	s.objects = &servicetest.ObjectStore{}
	client := workflow.NewClient(workflow.URLs{
		Generate:        s.webhook.URL + "/generate",
		RefineHook:      s.webhook.URL + "/hook",
		RefineCTA:       s.webhook.URL + "/cta",
		RefineParagraph: s.webhook.URL + "/paragraph",
		AddParagraph:    s.webhook.URL + "/add",
	}, time.Second, log)
	scheduler := &servicetest.Scheduler{}
	costs := service.CreditCosts{Generate: 3, Refine: 1}

	h := &api.Handler{
		Generation: service.NewGenerationService(s.store, client, scheduler, costs, time.Minute, log),
		Refinement: service.NewRefinementService(s.store, client, scheduler, &servicetest.Guard{}, costs, time.Minute, time.Minute, log),
		Editor:     service.NewEditorService(s.store, s.objects, log),
		History:    service.NewHistoryService(s.store, log),
		Callbacks:  service.NewCallbackService(s.store, hookSecret, log),
		Watcher:    service.NewWatcher(s.store, 10*time.Millisecond, log),
		Logger:     log,
	}
	s.authn = auth.NewJWTAuthenticator(testSecret, "authenticated")
	s.router = InitRouter(h, Options{
		Authenticator:      s.authn,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		Logger:             log,
	})

	token, err := s.authn.Issue(testUser, "u@example.test", time.Hour)
	s.Require().NoError(err)
	s.userAuth = "Bearer " + token
}

func (s *RouterSuite) TearDownTest() {
	s.webhook.Close()
}

func (s *RouterSuite) do(method, path, authz string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestMetrics() {
	w := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "go_goroutines")
}

func (s *RouterSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/generate-script", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func (s *RouterSuite) TestGenerate_RequiresToken() {
	w := s.do(http.MethodPost, "/functions/v1/generate-script", "", map[string]string{"userId": testUser, "topic": "Coffee"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/functions/v1/generate-script", "Bearer not-a-jwt", map[string]string{"userId": testUser, "topic": "Coffee"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Invalid token", decode(s.T(), w)["error"])
	s.Zero(s.hits.Load())
}

func (s *RouterSuite) TestGenerate_MissingTopic() {
	s.store.AddProfile(testUser, 10)

	w := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, map[string]string{"userId": testUser})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Missing required fields", decode(s.T(), w)["error"])
	s.Zero(s.hits.Load())
	s.Equal(10, s.store.Credits(testUser))
}

func (s *RouterSuite) TestGenerate_InvalidBody() {
	w := s.do(http.MethodPost, "/api/generate-script", s.userAuth, "{not json")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Zero(s.hits.Load())
}

func (s *RouterSuite) TestGenerate_UserMismatch() {
	s.store.AddProfile(testUser, 10)

	w := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, map[string]string{"userId": "someone-else", "topic": "Coffee"})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("User ID mismatch", decode(s.T(), w)["error"])
}

func (s *RouterSuite) TestGenerate_MissingProfile() {
	w := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, map[string]string{"userId": testUser, "topic": "Coffee"})
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("User profile not found", decode(s.T(), w)["error"])
}

func (s *RouterSuite) TestGenerate_InsufficientCredits() {
	s.store.AddProfile(testUser, 1)

	w := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, map[string]string{"userId": testUser, "topic": "Coffee"})
	s.Equal(http.StatusBadRequest, w.Code)
	body := decode(s.T(), w)
	s.Equal("Insufficient credits", body["error"])
	s.EqualValues(3, body["creditsNeeded"])
	s.EqualValues(1, body["creditsAvailable"])
	s.Equal(1, s.store.Credits(testUser))
	s.Zero(s.hits.Load())
}

func (s *RouterSuite) TestGenerate_Success() {
	s.store.AddProfile(testUser, 10)

	w := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, map[string]string{
		"userId": testUser, "topic": "Coffee", "language": "Spanish", "videoLength": "Short Form",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := decode(s.T(), w)
	s.Equal("Script generation started successfully", body["message"])
	scriptID, _ := body["scriptId"].(string)
	s.NotEmpty(scriptID)

	s.Equal(7, s.store.Credits(testUser))
	s.EqualValues(1, s.hits.Load())

	sc, err := s.store.GetScript(context.Background(), scriptID)
	s.Require().NoError(err)
	s.Equal(models.ScriptStatusGeneratingScript, sc.GenerationStatus)
	s.Equal("Coffee - Spanish Short Form", sc.ScriptTitle)
}

func (s *RouterSuite) TestGenerate_WebhookFailure() {
	s.store.AddProfile(testUser, 10)
	s.status.Store(http.StatusInternalServerError)

	w := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, map[string]string{"userId": testUser, "topic": "Coffee"})
	s.Equal(http.StatusInternalServerError, w.Code)
	body := decode(s.T(), w)
	s.Equal("Failed to trigger script generation via webhook", body["error"])
	s.Equal(`{"message":"Workflow could not be started"}`, body["details"])

	s.Equal(10, s.store.Credits(testUser))
	scripts := s.store.Scripts()
	s.Require().Len(scripts, 1)
	s.Equal(models.ScriptStatusError, scripts[0].GenerationStatus)
}

func (s *RouterSuite) TestGenerate_IdempotencyKey() {
	s.store.AddProfile(testUser, 10)
	req := map[string]string{"userId": testUser, "topic": "Coffee"}

	first := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, req, "Idempotency-Key", "k-1")
	second := s.do(http.MethodPost, "/functions/v1/generate-script", s.userAuth, req, "Idempotency-Key", "k-1")
	s.Require().Equal(http.StatusOK, first.Code)
	s.Require().Equal(http.StatusOK, second.Code)

	s.Equal(decode(s.T(), first)["scriptId"], decode(s.T(), second)["scriptId"])
	s.Equal(7, s.store.Credits(testUser))
	s.EqualValues(1, s.hits.Load())
}

func (s *RouterSuite) seedScript(id string) {
	s.store.PutScript(models.GeneratedScript{
		ID:                 id,
		UserID:             testUser,
		ScriptTitle:        "Coffee",
		Topic:              "Coffee",
		ScriptBodyMarkdown: sampleOutput,
		GenerationStatus:   models.ScriptStatusComplete,
	})
}

func (s *RouterSuite) TestRefine_LegacyFieldNames() {
	s.store.AddProfile(testUser, 2)
	s.seedScript("s1")

	w := s.do(http.MethodPost, "/functions/v1/refine-content", s.userAuth, map[string]interface{}{
		"scriptId":          "s1",
		"userId":            testUser,
		"refinementType":    "paragraph",
		"userPrompt":        "shorter",
		"originalParagraph": "Coffee began in Ethiopia.",
		"paragraphIndex":    0,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := decode(s.T(), w)
	s.Equal("Content refinement started successfully", body["message"])
	s.NotEmpty(body["refinementId"])
	s.Equal(1, s.store.Credits(testUser))
}

func (s *RouterSuite) TestRefine_InvalidType() {
	s.store.AddProfile(testUser, 2)
	s.seedScript("s1")

	w := s.do(http.MethodPost, "/functions/v1/refine-content", s.userAuth, map[string]interface{}{
		"scriptId": "s1", "userId": testUser, "type": "title", "userMessage": "x",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Invalid refinement type", decode(s.T(), w)["error"])
	s.Zero(s.hits.Load())
}

func (s *RouterSuite) TestRefine_ParagraphWithoutPosition() {
	s.store.AddProfile(testUser, 2)
	s.seedScript("s1")

	w := s.do(http.MethodPost, "/functions/v1/refine-content", s.userAuth, map[string]interface{}{
		"scriptId": "s1", "userId": testUser, "type": "paragraph", "userMessage": "make the second paragraph punchier",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	body := decode(s.T(), w)
	s.Equal("Missing required fields", body["error"])
	s.Equal([]interface{}{"paragraphPosition"}, body["details"])
	s.Zero(s.hits.Load())
	s.Equal(2, s.store.Credits(testUser))
}

func (s *RouterSuite) TestRefineSelectFlow() {
	s.store.AddProfile(testUser, 2)
	s.seedScript("s1")

	w := s.do(http.MethodPost, "/functions/v1/refine-content", s.userAuth, map[string]interface{}{
		"scriptId": "s1", "userId": testUser, "type": "hook", "userMessage": "more drama",
	})
	s.Require().Equal(http.StatusOK, w.Code)
	refID := decode(s.T(), w)["refinementId"].(string)

	w = s.do(http.MethodPost, "/v1/api/refinements/"+refID+"/select", s.userAuth, map[string]string{"option": "Drama!"})
	s.Equal(http.StatusConflict, w.Code, "options have not arrived yet")

	w = s.do(http.MethodPost, "/v1/hooks/refinements/"+refID, "", map[string]interface{}{"options": []string{"Drama!", "Suspense!"}})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/v1/hooks/refinements/"+refID, "", map[string]interface{}{"options": []string{"Drama!", "Suspense!"}}, "X-Workflow-Secret", hookSecret)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/v1/api/refinements/"+refID+"/select", s.userAuth, map[string]string{"option": "Drama!"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.EqualValues(2, decode(s.T(), w)["version"])

	w = s.do(http.MethodGet, "/v1/api/scripts/s1", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Drama!", decode(s.T(), w)["hook"])

	w = s.do(http.MethodGet, "/v1/api/scripts/s1/refinements", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	refs := decode(s.T(), w)["refinements"].([]interface{})
	s.Len(refs, 1)
}

func (s *RouterSuite) TestScriptCallbackCompletes() {
	s.store.PutScript(models.GeneratedScript{ID: "s2", UserID: testUser, GenerationStatus: models.ScriptStatusGeneratingScript})

	w := s.do(http.MethodPost, "/v1/hooks/scripts/s2", "", map[string]string{
		"status": "complete", "script_body_markdown": sampleOutput,
	}, "X-Workflow-Secret", hookSecret)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/api/scripts/s2", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode(s.T(), w)
	structure := body["structure"].(map[string]interface{})
	s.Len(structure["sections"], 2)
	s.Equal(false, structure["unparsed"])
}

func (s *RouterSuite) TestHistoryAndMetadata() {
	s.seedScript("s1")

	w := s.do(http.MethodPost, "/v1/api/scripts/s1/tags", s.userAuth, map[string]string{"tag": "intro"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/api/scripts?q=intro", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode(s.T(), w)
	s.Equal(true, body["metadata_available"])
	s.Len(body["scripts"], 1)

	s.store.MetadataMissing = true
	w = s.do(http.MethodPut, "/v1/api/scripts/s1/metadata", s.userAuth, map[string]interface{}{"is_favorite": true})
	s.Equal(http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/v1/api/scripts", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(false, decode(s.T(), w)["metadata_available"])

	w = s.do(http.MethodDelete, "/v1/api/scripts/s1", s.userAuth, nil)
	s.Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/v1/api/scripts/s1", s.userAuth, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestProfile() {
	s.store.AddProfile(testUser, 9)

	w := s.do(http.MethodGet, "/v1/api/profile", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.EqualValues(9, decode(s.T(), w)["credits"])
}

func (s *RouterSuite) TestExport() {
	s.seedScript("s1")

	w := s.do(http.MethodPost, "/v1/api/scripts/s1/export", s.userAuth, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := decode(s.T(), w)
	s.Equal("exports/user-1/s1/v1.md", body["object_name"])
	s.True(strings.HasPrefix(body["url"].(string), "https://objects.test/"))
	s.EqualValues(3600, body["expires_in"])
}

func (s *RouterSuite) TestScriptFeed() {
	s.store.PutScript(models.GeneratedScript{ID: "s3", UserID: testUser, GenerationStatus: models.ScriptStatusGeneratingScript})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	token := strings.TrimPrefix(s.userAuth, "Bearer ")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/api/scripts/s3/ws?access_token=" + token

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/api/scripts/missing/ws?access_token="+token, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev service.Event
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal(service.EventScript, ev.Type)
	s.Equal(models.ScriptStatusGeneratingScript, ev.Script.Script.GenerationStatus)

	w := s.do(http.MethodPost, "/v1/hooks/scripts/s3", "", map[string]string{
		"status": "complete", "script_body_markdown": sampleOutput,
	}, "X-Workflow-Secret", hookSecret)
	s.Require().Equal(http.StatusOK, w.Code)

	ev = service.Event{}
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal(service.EventScript, ev.Type)
	s.Equal(models.ScriptStatusComplete, ev.Script.Script.GenerationStatus)
	s.Equal("Old hook", ev.Script.Hook)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	cfg := corsConfig([]string{"https://app.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowOrigins)
}
