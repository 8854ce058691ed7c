package dispatcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-trivia-bot/internal/constant"
	"ai-trivia-bot/internal/dto"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/service"
	"ai-trivia-bot/pkg/telegram"
)

const adminID int64 = 1000

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *telegram.InlineKeyboardMarkup
}

type editedMessage struct {
	chatID    int64
	messageID int64
	text      string
}

type fakeAPI struct {
	sent   []sentMessage
	edited []editedMessage
	acked  []string
	nextID int64
}

func (f *fakeAPI) GetUpdates(_ context.Context, _ int64, _ int) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (int64, error) {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: keyboard})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, chatID, messageID int64, text string, _ *telegram.InlineKeyboardMarkup) error {
	f.edited = append(f.edited, editedMessage{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, callbackID, _ string, _ bool) error {
	f.acked = append(f.acked, callbackID)
	return nil
}

type fakeCuration struct {
	events   []service.Event
	effects  []service.Effect
	awaiting bool
}

func (f *fakeCuration) Handle(_ context.Context, evt service.Event) []service.Effect {
	f.events = append(f.events, evt)
	return f.effects
}

func (f *fakeCuration) AwaitingInput(int64) bool {
	return f.awaiting
}

type fakeQuery struct {
	questions  []string
	privileged []bool
	resp       *dto.AskResponse
}

func (f *fakeQuery) Ask(_ context.Context, question string, privileged bool) *dto.AskResponse {
	f.questions = append(f.questions, question)
	f.privileged = append(f.privileged, privileged)
	return f.resp
}

func newTestDispatcher(t *testing.T, curation *fakeCuration, query *fakeQuery) (*Dispatcher, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	log := logger.NewZapLogger(filepath.Join(t.TempDir(), "bot.log"), false)
	return New(api, curation, query, adminID, 30, log), api
}

func textUpdate(chatID, userID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: userID},
			Chat:      telegram.Chat{ID: chatID},
			Text:      text,
		},
	}
}

func TestCommandRoutedToCuration(t *testing.T) {
	curation := &fakeCuration{}
	d, _ := newTestDispatcher(t, curation, &fakeQuery{})

	d.HandleUpdate(context.Background(), textUpdate(5, 5, "/start"))

	require.Len(t, curation.events, 1)
	assert.Equal(t, service.EventCommand, curation.events[0].Kind)
	assert.Equal(t, "start", curation.events[0].Command)
}

func TestCommandWithBotSuffixAndCase(t *testing.T) {
	curation := &fakeCuration{}
	d, _ := newTestDispatcher(t, curation, &fakeQuery{})

	d.HandleUpdate(context.Background(), textUpdate(5, 5, "/Admin@TriviaBot extra words"))

	require.Len(t, curation.events, 1)
	assert.Equal(t, "admin", curation.events[0].Command)
}

func TestPhotoRoutedWithLargestSize(t *testing.T) {
	curation := &fakeCuration{}
	d, _ := newTestDispatcher(t, curation, &fakeQuery{})

	d.HandleUpdate(context.Background(), telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: adminID},
			Chat: telegram.Chat{ID: adminID},
			Photo: []telegram.PhotoSize{
				{FileID: "small", Width: 90},
				{FileID: "large", Width: 1280},
			},
		},
	})

	require.Len(t, curation.events, 1)
	assert.Equal(t, service.EventPhoto, curation.events[0].Kind)
	assert.Equal(t, "large", curation.events[0].PhotoFileID)
}

func TestTextDuringFlowGoesToCuration(t *testing.T) {
	curation := &fakeCuration{awaiting: true}
	query := &fakeQuery{}
	d, _ := newTestDispatcher(t, curation, query)

	d.HandleUpdate(context.Background(), textUpdate(adminID, adminID, "the answer is 42"))

	require.Len(t, curation.events, 1)
	assert.Equal(t, service.EventText, curation.events[0].Kind)
	assert.Empty(t, query.questions, "flow input must not reach the resolver")
}

func TestQuestionSendsAckThenEditsInPlace(t *testing.T) {
	query := &fakeQuery{resp: &dto.AskResponse{Matched: true, Message: "Baikal"}}
	d, api := newTestDispatcher(t, &fakeCuration{}, query)

	d.HandleUpdate(context.Background(), textUpdate(5, 5, "deepest lake?"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, constant.MsgSearching, api.sent[0].text)

	require.Len(t, api.edited, 1)
	assert.Equal(t, "Baikal", api.edited[0].text)
	assert.Equal(t, api.nextID, api.edited[0].messageID, "result must edit the ack message")

	require.Len(t, query.privileged, 1)
	assert.False(t, query.privileged[0])
}

func TestQuestionFromAdminIsPrivileged(t *testing.T) {
	query := &fakeQuery{resp: &dto.AskResponse{Message: constant.MsgNoMatchAdmin}}
	d, _ := newTestDispatcher(t, &fakeCuration{}, query)

	d.HandleUpdate(context.Background(), textUpdate(adminID, adminID, "anything"))

	require.Len(t, query.privileged, 1)
	assert.True(t, query.privileged[0])
}

func TestCallbackRoutedToCuration(t *testing.T) {
	curation := &fakeCuration{effects: []service.Effect{
		{Kind: service.EffectAck, CallbackID: "cb-1"},
	}}
	d, api := newTestDispatcher(t, curation, &fakeQuery{})

	d.HandleUpdate(context.Background(), telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-1",
			From: telegram.User{ID: adminID},
			Message: &telegram.Message{
				MessageID: 42,
				Chat:      telegram.Chat{ID: adminID},
			},
			Data: "panel:add",
		},
	})

	require.Len(t, curation.events, 1)
	evt := curation.events[0]
	assert.Equal(t, service.EventCallback, evt.Kind)
	assert.Equal(t, "panel:add", evt.CallbackData)
	assert.Equal(t, int64(42), evt.MessageID)

	assert.Equal(t, []string{"cb-1"}, api.acked)
}

func TestEffectPlayback(t *testing.T) {
	curation := &fakeCuration{effects: []service.Effect{
		{Kind: service.EffectRender, ChatID: 1, Text: "hello", Buttons: [][]service.Button{
			{{Label: "Go", Token: "panel:add"}},
		}},
		{Kind: service.EffectEdit, ChatID: 1, MessageID: 3, Text: "edited"},
	}}
	d, api := newTestDispatcher(t, curation, &fakeQuery{})

	d.HandleUpdate(context.Background(), textUpdate(1, 1, "/start"))

	require.Len(t, api.sent, 1)
	require.NotNil(t, api.sent[0].keyboard)
	require.Len(t, api.sent[0].keyboard.InlineKeyboard, 1)
	assert.Equal(t, "Go", api.sent[0].keyboard.InlineKeyboard[0][0].Text)
	assert.Equal(t, "panel:add", api.sent[0].keyboard.InlineKeyboard[0][0].CallbackData)

	require.Len(t, api.edited, 1)
	assert.Equal(t, "edited", api.edited[0].text)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in      string
		name    string
		command bool
	}{
		{"/start", "start", true},
		{"/HELP", "help", true},
		{"/cancel@SomeBot", "cancel", true},
		{"plain question", "", false},
		{"/", "", false},
	}
	for _, tc := range cases {
		name, ok := parseCommand(tc.in)
		assert.Equal(t, tc.command, ok, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
	}
}
