package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-trivia-bot/internal/constant"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/repository/archive"
	"ai-trivia-bot/internal/repository/memory"
	"ai-trivia-bot/pkg/events"
	"ai-trivia-bot/pkg/store"
	"ai-trivia-bot/pkg/telegram"
)

const (
	testAdminID int64 = 1000
	testUserID  int64 = 2000
)

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Extract(imagePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeFetcher struct {
	err       error
	lastPath  string
	downloads int
}

func (f *fakeFetcher) DownloadFile(_ context.Context, fileID, dir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	tmp, err := os.CreateTemp(dir, "tg-image-*.jpg")
	if err != nil {
		return "", err
	}
	tmp.Close()
	f.lastPath = tmp.Name()
	f.downloads++
	return tmp.Name(), nil
}

type fakePublisher struct {
	payloads [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeHub struct {
	broadcast []events.Event
}

func (f *fakeHub) BroadcastEvent(evt events.Event) {
	f.broadcast = append(f.broadcast, evt)
}

type fakeMailer struct {
	alerts int
}

func (f *fakeMailer) SendStorageAlert(operation string, cause error) error {
	f.alerts++
	return nil
}

type curationFixture struct {
	service   ICurationService
	archive   *archive.Store
	stats     *archive.StatsStore
	sessions  *memory.SessionRepository
	ocr       *fakeOCR
	fetcher   *fakeFetcher
	publisher *fakePublisher
	hub       *fakeHub
	mailer    *fakeMailer
	tempDir   string
}

func newCurationFixture(t *testing.T) *curationFixture {
	t.Helper()
	dir := t.TempDir()
	return newCurationFixtureAt(t, filepath.Join(dir, "questions.json"), dir)
}

func newCurationFixtureAt(t *testing.T, archivePath, tempDir string) *curationFixture {
	t.Helper()

	log := logger.NewZapLogger(filepath.Join(t.TempDir(), "bot.log"), false)
	f := &curationFixture{
		archive:   archive.NewStore(archivePath, nil),
		stats:     archive.NewStatsStore(filepath.Join(t.TempDir(), "stats.json"), nil),
		sessions:  memory.NewSessionRepository(),
		ocr:       &fakeOCR{text: "What is the capital of France?"},
		fetcher:   &fakeFetcher{},
		publisher: &fakePublisher{},
		hub:       &fakeHub{},
		mailer:    &fakeMailer{},
		tempDir:   tempDir,
	}
	f.service = NewCurationService(
		testAdminID, 5, tempDir,
		f.archive, f.stats, f.sessions,
		f.ocr, f.fetcher, f.publisher, nil, f.hub, f.mailer, log,
	)
	return f
}

func cmd(userID int64, name string) Event {
	return Event{Kind: EventCommand, ChatID: userID, UserID: userID, Command: name}
}

func txt(userID int64, text string) Event {
	return Event{Kind: EventText, ChatID: userID, UserID: userID, Text: text}
}

func cb(userID int64, data string) Event {
	return Event{Kind: EventCallback, ChatID: userID, UserID: userID, MessageID: 7, CallbackID: "cbq", CallbackData: data}
}

func photo(userID int64, fileID string) Event {
	return Event{Kind: EventPhoto, ChatID: userID, UserID: userID, PhotoFileID: fileID}
}

func lastEffect(t *testing.T, effects []Effect) Effect {
	t.Helper()
	require.NotEmpty(t, effects)
	return effects[len(effects)-1]
}

func TestStartGreetsAndRecordsFirstContact(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	effects := f.service.Handle(ctx, cmd(testUserID, "start"))
	out := lastEffect(t, effects)
	assert.Equal(t, constant.MsgWelcome, out.Text)
	assert.Contains(t, f.stats.Stats().Users, testUserID)

	// Admin greeting carries the panel hint.
	effects = f.service.Handle(ctx, cmd(testAdminID, "start"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgWelcomeAdminSuffix)
}

func TestAdminCommandRejectedForNonAdmin(t *testing.T) {
	f := newCurationFixture(t)

	effects := f.service.Handle(context.Background(), cmd(testUserID, "admin"))
	assert.Equal(t, constant.MsgAdminOnly, lastEffect(t, effects).Text)
	assert.False(t, f.service.AwaitingInput(testUserID))
}

func TestCallbackFromNonAdminIsTerminalNoop(t *testing.T) {
	f := newCurationFixture(t)

	effects := f.service.Handle(context.Background(), cb(testUserID, "panel:add"))
	require.Len(t, effects, 1)
	assert.Equal(t, EffectAck, effects[0].Kind)
	assert.True(t, effects[0].Alert)
	assert.Equal(t, constant.MsgAdminOnly, effects[0].Text)

	_, found := f.sessions.Get(testUserID)
	assert.False(t, found, "rejected press must not create a session")
}

func TestAddFlowCommitsEntry(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:add"))
	require.True(t, f.service.AwaitingInput(testAdminID))

	effects := f.service.Handle(ctx, txt(testAdminID, "Deepest lake?"))
	assert.Equal(t, constant.MsgAskAnswer, lastEffect(t, effects).Text)

	effects = f.service.Handle(ctx, txt(testAdminID, "Baikal"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgSaved)

	snapshot := f.archive.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Deepest lake?", snapshot[0].Question)
	assert.Equal(t, "Baikal", snapshot[0].Answer)

	assert.NotEqual(t, "N/A", f.stats.Stats().LastAdded)

	require.Len(t, f.publisher.payloads, 1)
	assert.Contains(t, string(f.publisher.payloads[0]), "upsert")

	require.Len(t, f.hub.broadcast, 1)
	assert.Equal(t, events.TypeEntryUpserted, f.hub.broadcast[0].EventType())

	// Back at the panel root: free text flows to the resolver again.
	assert.False(t, f.service.AwaitingInput(testAdminID))
}

func TestAddFlowSaveFailureKeepsStateAndAlerts(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the archive's parent directory should be makes
	// every save fail while the in-memory flow stays intact.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	f := newCurationFixtureAt(t, filepath.Join(blocked, "questions.json"), dir)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:add"))
	f.service.Handle(ctx, txt(testAdminID, "q"))

	effects := f.service.Handle(ctx, txt(testAdminID, "a"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgSaveFailed)

	assert.Equal(t, 0, f.archive.Len())
	assert.Equal(t, 1, f.mailer.alerts)
	assert.Empty(t, f.publisher.payloads)

	// The curator can retry the answer without restarting the flow.
	assert.True(t, f.service.AwaitingInput(testAdminID))
}

func TestSessionLostAbortsCommit(t *testing.T) {
	f := newCurationFixture(t)

	f.sessions.Save(&store.Session{ChatID: testAdminID, State: store.StateAddAwaitingAnswer})

	effects := f.service.Handle(context.Background(), txt(testAdminID, "orphan answer"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgSessionLost)
	assert.Equal(t, 0, f.archive.Len())
	assert.False(t, f.service.AwaitingInput(testAdminID))
}

func TestPhotoFlowExtractsAndCleansUp(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:photo"))

	effects := f.service.Handle(ctx, photo(testAdminID, "file-1"))
	out := lastEffect(t, effects)
	assert.Contains(t, out.Text, f.ocr.text)

	_, err := os.Stat(f.fetcher.lastPath)
	assert.True(t, os.IsNotExist(err), "downloaded image must be removed after extraction")

	// Extraction is a prompt aid: the typed question is what gets committed.
	f.service.Handle(ctx, txt(testAdminID, "Capital of France?"))
	f.service.Handle(ctx, txt(testAdminID, "Paris"))

	snapshot := f.archive.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Capital of France?", snapshot[0].Question)
}

func TestPhotoFlowExtractionFailureCleansUpAndResets(t *testing.T) {
	f := newCurationFixture(t)
	f.ocr.err = errors.New("no text found")
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:photo"))

	effects := f.service.Handle(ctx, photo(testAdminID, "file-1"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgExtractionFailed)

	_, err := os.Stat(f.fetcher.lastPath)
	assert.True(t, os.IsNotExist(err), "downloaded image must be removed on failure too")
	assert.False(t, f.service.AwaitingInput(testAdminID))
}

func TestPhotoFetchFailureResets(t *testing.T) {
	f := newCurationFixture(t)
	f.fetcher.err = errors.New("telegram unreachable")
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:photo"))

	effects := f.service.Handle(ctx, photo(testAdminID, "file-1"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgPhotoFetchFailed)
	assert.False(t, f.service.AwaitingInput(testAdminID))
}

func TestDeleteMenuTokensSurviveTruncation(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	long := "What is the airspeed velocity of an unladen swallow carrying a coconut across the channel?"
	require.NoError(t, f.archive.Update(long, "African or European?"))

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	effects := f.service.Handle(ctx, cb(testAdminID, "panel:delete"))
	out := lastEffect(t, effects)
	require.NotEmpty(t, out.Buttons)

	token, err := telegram.ParseToken(out.Buttons[0][0].Token)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(token.Arg), telegram.MaxArgBytes)

	effects = f.service.Handle(ctx, cb(testAdminID, out.Buttons[0][0].Token))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgDeleted)
	assert.Equal(t, 0, f.archive.Len())

	require.Len(t, f.publisher.payloads, 1)
	assert.Contains(t, string(f.publisher.payloads[0]), "delete")
}

func TestDeletePickStaleSelection(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.archive.Update("only question", "answer"))
	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:delete"))

	// The entry vanishes between menu render and button press.
	_, err := f.archive.Delete("only question")
	require.NoError(t, err)

	effects := f.service.Handle(ctx, cb(testAdminID, "del:pick:only question"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgDeleteNotFound)
}

func TestDeletePickAmbiguousPrefixRefuses(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.archive.Update("shared prefix one", "1"))
	require.NoError(t, f.archive.Update("shared prefix two", "2"))

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	effects := f.service.Handle(ctx, cb(testAdminID, "del:pick:shared prefix"))
	assert.Contains(t, lastEffect(t, effects).Text, constant.MsgDeleteAmbiguous)
	assert.Equal(t, 2, f.archive.Len(), "ambiguity must never silently pick an entry")
}

func TestDeleteAwaitingPickTextNudgesButtons(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.archive.Update("q", "a"))
	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:delete"))

	effects := f.service.Handle(ctx, txt(testAdminID, "delete the second one"))
	assert.Equal(t, constant.MsgUseButtons, lastEffect(t, effects).Text)
}

func TestListPaginationClamps(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		require.NoError(t, f.archive.Update(fmt.Sprintf("question %02d", i), fmt.Sprintf("answer %d", i)))
	}
	f.service.Handle(ctx, cmd(testAdminID, "admin"))

	effects := f.service.Handle(ctx, cb(testAdminID, "list:page:0"))
	out := lastEffect(t, effects)
	assert.Contains(t, out.Text, "page 1 of 3")
	assert.Contains(t, out.Text, "question 01")
	assert.NotContains(t, out.Text, "question 06")
	for _, row := range out.Buttons {
		for _, btn := range row {
			assert.NotContains(t, btn.Label, "Prev", "first page has no previous button")
		}
	}

	// An out-of-range request lands on the last page instead of erroring.
	effects = f.service.Handle(ctx, cb(testAdminID, "list:page:99"))
	out = lastEffect(t, effects)
	assert.Contains(t, out.Text, "page 3 of 3")
	assert.Contains(t, out.Text, "question 12")
	for _, row := range out.Buttons {
		for _, btn := range row {
			assert.NotContains(t, btn.Label, "Next", "last page has no next button")
		}
	}
}

func TestListEmptyArchive(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	effects := f.service.Handle(ctx, cb(testAdminID, "list:page:0"))
	assert.Equal(t, constant.MsgListEmpty, lastEffect(t, effects).Text)
}

func TestPanelRootDoesNotCaptureFreeText(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	assert.False(t, f.service.AwaitingInput(testAdminID))

	// With the panel open but no flow armed, text belongs to the resolver.
	effects := f.service.Handle(ctx, txt(testAdminID, "what is the deepest lake?"))
	assert.Empty(t, effects)
}

func TestCancelCommandEndsFlow(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:add"))
	require.True(t, f.service.AwaitingInput(testAdminID))

	effects := f.service.Handle(ctx, cmd(testAdminID, "cancel"))
	assert.Equal(t, constant.MsgFlowEnded, lastEffect(t, effects).Text)
	assert.False(t, f.service.AwaitingInput(testAdminID))
}

func TestCancelButtonReturnsToRoot(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	f.service.Handle(ctx, cb(testAdminID, "panel:add"))

	effects := f.service.Handle(ctx, cb(testAdminID, "panel:cancel"))
	out := lastEffect(t, effects)
	assert.Contains(t, out.Text, constant.MsgCancelled)
	assert.Contains(t, out.Text, constant.MsgPanelRoot)
	assert.False(t, f.service.AwaitingInput(testAdminID))
}

func TestCloseTearsDownSession(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	f.service.Handle(ctx, cmd(testAdminID, "admin"))
	effects := f.service.Handle(ctx, cb(testAdminID, "panel:close"))
	assert.Equal(t, constant.MsgPanelClosed, lastEffect(t, effects).Text)

	_, found := f.sessions.Get(testAdminID)
	assert.False(t, found)
}

func TestStatsActionReportsCounts(t *testing.T) {
	f := newCurationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.archive.Update("q", "a"))
	f.service.Handle(ctx, cmd(testUserID, "start"))
	f.service.Handle(ctx, cmd(testAdminID, "admin"))

	effects := f.service.Handle(ctx, cb(testAdminID, "panel:stats"))
	out := lastEffect(t, effects)
	assert.Contains(t, out.Text, "Entries: 1")
	assert.Contains(t, strings.ToLower(out.Text), "users")
}
