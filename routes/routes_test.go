package routes

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/KosMik1312/Buisness-Reminder-Bot/config"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Logger = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

// fakeBot 仅记录收到的更新
type fakeBot struct {
	updates chan tgbotapi.Update
}

func (f *fakeBot) Token() string {
	return "test-token"
}

func (f *fakeBot) HandleUpdate(update tgbotapi.Update) {
	f.updates <- update
}

func newTestRouter() (*gin.Engine, *fakeBot) {
	r := gin.New()
	b := &fakeBot{updates: make(chan tgbotapi.Update, 1)}
	RegisterRoutes(r, b)
	return r, b
}

func TestWebhookAcceptsUpdate(t *testing.T) {
	r, b := newTestRouter()

	body := `{"update_id":1,"message":{"message_id":1,"chat":{"id":100},"text":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/test-token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	update := <-b.updates
	assert.Equal(t, 1, update.UpdateID)
	require.NotNil(t, update.Message)
	assert.Equal(t, int64(100), update.Message.Chat.ID)
}

func TestWebhookRejectsWrongToken(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/webhook/wrong", strings.NewReader(`{"update_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookRejectsBadBody(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/webhook/test-token", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPing(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}
