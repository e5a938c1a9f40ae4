package handlers_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conference-central/cache"
	"conference-central/database"
	"conference-central/handlers"
	"conference-central/mail"
	"conference-central/middleware"
	"conference-central/model"
	"conference-central/router"
	"conference-central/service"
	"conference-central/tasks"
)

const testSign = "test-signing-key"

type Test struct {
	description   string
	method        string
	route         string
	token         string
	bodyinput     []byte
	expectedError bool
	expectedCode  int
	expectedBody  string
}

type testApp struct {
	app *fiber.App
	svc *service.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zaptest.NewLogger(t)

	queue := tasks.NewQueue(tasks.Config{Workers: 2, Size: 64, MaxAttempts: 2, InitialBackoff: time.Millisecond}, logger)
	svc := service.New(service.Deps{
		Store:           database.NewLocalStore(),
		Announcements:   cache.NewInMemoryCacheManager[string]("announcements", 0, logger),
		FeaturedSpeaker: cache.NewInMemoryCacheManager[model.FeaturedSpeaker]("featured-speaker", 0, logger),
		Queue:           queue,
		Mailer:          mail.NewLogMailer(logger),
		Logger:          logger,
	}, service.Options{TxAttempts: 5, TxInitialBackoff: time.Millisecond})
	svc.RegisterTasks(queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = queue.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	app := fiber.New()
	router.SetupRoutes(app, handlers.New(svc, testSign, time.Hour, logger), middleware.Authorize(testSign))
	return &testApp{app: app, svc: svc}
}

func (a *testApp) do(t *testing.T, method, route, token string, body []byte) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, route, bytes.NewBuffer(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, payload
}

// login signs the user up and returns a bearer token.
func (a *testApp) login(t *testing.T, login string) string {
	t.Helper()
	creds := []byte(`{"login":"` + login + `","email":"` + login + `@example.com","password":"secret"}`)

	code, body := a.do(t, "POST", "/signup", "", creds)
	require.Equal(t, fiber.StatusOK, code, string(body))
	code, body = a.do(t, "POST", "/login", "", creds)
	require.Equal(t, fiber.StatusOK, code, string(body))

	var res struct {
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	return res.Data
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}
