package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ai-trivia-bot/internal/constant"
	"ai-trivia-bot/internal/dto"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/pkg/mailer"
	"ai-trivia-bot/internal/repository/archive"
	"ai-trivia-bot/internal/repository/memory"
	"ai-trivia-bot/pkg/events"
	pktNats "ai-trivia-bot/pkg/nats"
	"ai-trivia-bot/pkg/ocr"
	"ai-trivia-bot/pkg/store"
	"ai-trivia-bot/pkg/telegram"
)

// FileFetcher pulls an inbound image to a local temporary file. The caller
// owns removal of that file on every exit path.
type FileFetcher interface {
	DownloadFile(ctx context.Context, fileID, dir string) (string, error)
}

// ICurationService is the curation state machine: a transition function from
// (session state, inbound event) to (new state, outbound effects).
type ICurationService interface {
	Handle(ctx context.Context, evt Event) []Effect

	// AwaitingInput reports whether free text from this conversation belongs
	// to an in-flight flow rather than the query resolver.
	AwaitingInput(chatID int64) bool
}

type curationService struct {
	adminChatID int64
	pageSize    int
	tempDir     string

	archiveStore *archive.Store
	statsStore   *archive.StatsStore
	sessionRepo  *memory.SessionRepository

	ocrProvider      ocr.Provider
	fileFetcher      FileFetcher
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	activityHub      ActivityBroadcaster
	alertMailer      mailer.IAlertMailer
	logger           logger.ILogger
}

func NewCurationService(
	adminChatID int64,
	pageSize int,
	tempDir string,
	archiveStore *archive.Store,
	statsStore *archive.StatsStore,
	sessionRepo *memory.SessionRepository,
	ocrProvider ocr.Provider,
	fileFetcher FileFetcher,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	activityHub ActivityBroadcaster,
	alertMailer mailer.IAlertMailer,
	log logger.ILogger,
) ICurationService {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &curationService{
		adminChatID:      adminChatID,
		pageSize:         pageSize,
		tempDir:          tempDir,
		archiveStore:     archiveStore,
		statsStore:       statsStore,
		sessionRepo:      sessionRepo,
		ocrProvider:      ocrProvider,
		fileFetcher:      fileFetcher,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		activityHub:      activityHub,
		alertMailer:      alertMailer,
		logger:           log,
	}
}

func (cs *curationService) isAdmin(userID int64) bool {
	return userID == cs.adminChatID
}

func (cs *curationService) AwaitingInput(chatID int64) bool {
	session, found := cs.sessionRepo.Get(chatID)
	return found && session.AwaitingInput()
}

func (cs *curationService) Handle(ctx context.Context, evt Event) []Effect {
	switch evt.Kind {
	case EventCommand:
		return cs.handleCommand(evt)
	case EventCallback:
		return cs.handleCallback(ctx, evt)
	case EventText:
		return cs.handleText(ctx, evt)
	case EventPhoto:
		return cs.handlePhoto(ctx, evt)
	}
	return nil
}

// --- Commands ---

func (cs *curationService) handleCommand(evt Event) []Effect {
	switch evt.Command {
	case "start":
		if _, err := cs.statsStore.RecordUser(evt.UserID); err != nil {
			cs.logger.Warn("Curation", "Failed to record first contact", map[string]interface{}{
				"user_id": evt.UserID,
				"error":   err.Error(),
			})
		}
		welcome := constant.MsgWelcome
		if cs.isAdmin(evt.UserID) {
			welcome += constant.MsgWelcomeAdminSuffix
		}
		return []Effect{render(evt.ChatID, welcome, nil)}

	case "admin":
		if !cs.isAdmin(evt.UserID) {
			return []Effect{render(evt.ChatID, constant.MsgAdminOnly, nil)}
		}
		cs.resetToRoot(evt.ChatID)
		return []Effect{render(evt.ChatID, constant.MsgPanelRoot, panelKeyboard())}

	case "cancel":
		if !cs.isAdmin(evt.UserID) {
			return []Effect{render(evt.ChatID, constant.MsgAdminOnly, nil)}
		}
		cs.sessionRepo.Delete(evt.ChatID)
		return []Effect{render(evt.ChatID, constant.MsgFlowEnded, nil)}

	case "help":
		if !cs.isAdmin(evt.UserID) {
			return []Effect{render(evt.ChatID, constant.MsgAdminOnly, nil)}
		}
		return []Effect{render(evt.ChatID, constant.MsgHelp, nil)}
	}
	return nil
}

// --- Button presses ---

func (cs *curationService) handleCallback(ctx context.Context, evt Event) []Effect {
	if !cs.isAdmin(evt.UserID) {
		// Terminal no-op: no session is read or written.
		return []Effect{alert(evt.CallbackID, constant.MsgAdminOnly)}
	}

	token, err := telegram.ParseToken(evt.CallbackData)
	if err != nil {
		cs.logger.Warn("Curation", "Malformed callback token", map[string]interface{}{
			"data": evt.CallbackData,
		})
		return []Effect{ack(evt.CallbackID)}
	}

	switch token.Namespace {
	case constant.NSPanel:
		return cs.handlePanelAction(evt, token.Action)
	case constant.NSList:
		if token.Action == constant.ActionPage {
			page, convErr := strconv.Atoi(token.Arg)
			if convErr != nil {
				page = 0
			}
			return append([]Effect{ack(evt.CallbackID)}, cs.renderListPage(evt, page))
		}
	case constant.NSDelete:
		if token.Action == constant.ActionPick {
			return cs.handleDeletePick(ctx, evt, token.Arg)
		}
	}

	cs.logger.Warn("Curation", "Unknown callback token", map[string]interface{}{
		"data": evt.CallbackData,
	})
	return []Effect{ack(evt.CallbackID)}
}

func (cs *curationService) handlePanelAction(evt Event, action string) []Effect {
	effects := []Effect{ack(evt.CallbackID)}

	switch action {
	case constant.ActionAdd:
		cs.setState(evt.ChatID, store.StateAddAwaitingQuestion)
		return append(effects, edit(evt.ChatID, evt.MessageID, constant.MsgAskQuestion, cancelKeyboard()))

	case constant.ActionPhoto:
		cs.setState(evt.ChatID, store.StatePhotoAwaitingImage)
		return append(effects, edit(evt.ChatID, evt.MessageID, constant.MsgAskPhoto, cancelKeyboard()))

	case constant.ActionDelete:
		return append(effects, cs.renderDeleteMenu(evt))

	case constant.ActionStats:
		stats := cs.statsStore.Stats()
		text := fmt.Sprintf("📊 Archive stats\n\nEntries: %d\nKnown users: %d\nLast added: %s",
			cs.archiveStore.Len(), len(stats.Users), stats.LastAdded)
		return append(effects, edit(evt.ChatID, evt.MessageID, text, backKeyboard()))

	case constant.ActionClose:
		cs.sessionRepo.Delete(evt.ChatID)
		return append(effects, edit(evt.ChatID, evt.MessageID, constant.MsgPanelClosed, nil))

	case constant.ActionRoot:
		cs.resetToRoot(evt.ChatID)
		return append(effects, edit(evt.ChatID, evt.MessageID, constant.MsgPanelRoot, panelKeyboard()))

	case constant.ActionCancel:
		cs.resetToRoot(evt.ChatID)
		return append(effects, edit(evt.ChatID, evt.MessageID, constant.MsgCancelled+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
	}

	return effects
}

// --- Delete flow ---

func (cs *curationService) renderDeleteMenu(evt Event) Effect {
	snapshot := cs.archiveStore.Snapshot()
	if len(snapshot) == 0 {
		cs.resetToRoot(evt.ChatID)
		return edit(evt.ChatID, evt.MessageID, constant.MsgDeleteEmpty, backKeyboard())
	}

	session := cs.loadOrCreate(evt.ChatID)
	session.State = store.StateDeleteAwaitingPick
	session.DeletionCandidates = nil

	var rows [][]Button
	for _, entry := range snapshot {
		session.DeletionCandidates = append(session.DeletionCandidates, entry.Question)
		rows = append(rows, []Button{{
			Label: displayLabel(entry.Question),
			Token: telegram.NewToken(constant.NSDelete, constant.ActionPick, entry.Question).Encode(),
		}})
	}
	rows = append(rows, []Button{{Label: "« Back", Token: telegram.NewToken(constant.NSPanel, constant.ActionRoot, "").Encode()}})
	cs.sessionRepo.Save(session)

	return edit(evt.ChatID, evt.MessageID, constant.MsgDeletePrompt, rows)
}

func (cs *curationService) handleDeletePick(ctx context.Context, evt Event, prefix string) []Effect {
	effects := []Effect{ack(evt.CallbackID)}
	cs.resetToRoot(evt.ChatID)

	question, err := cs.archiveStore.ResolveByPrefix(prefix)
	switch {
	case err == archive.ErrNotFound:
		// Stale selection racing another delete: report, never raise.
		return append(effects, edit(evt.ChatID, evt.MessageID,
			constant.MsgDeleteNotFound+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
	case err == archive.ErrAmbiguousPrefix:
		return append(effects, edit(evt.ChatID, evt.MessageID,
			constant.MsgDeleteAmbiguous+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
	case err != nil:
		return append(effects, edit(evt.ChatID, evt.MessageID,
			constant.MsgSaveFailed+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
	}

	removed, err := cs.archiveStore.Delete(question)
	if err != nil {
		cs.reportStorageFailure("delete", err)
		return append(effects, edit(evt.ChatID, evt.MessageID,
			constant.MsgSaveFailed+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
	}
	if !removed {
		return append(effects, edit(evt.ChatID, evt.MessageID,
			constant.MsgDeleteNotFound+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
	}

	cs.publishMutation(ctx, dto.MutationDelete, question)
	cs.emit(ctx, events.NewEntryDeleted(question))
	cs.logger.Info("Curation", "Entry deleted", map[string]interface{}{"question": question})

	return append(effects, edit(evt.ChatID, evt.MessageID,
		constant.MsgDeleted+"\n\n"+constant.MsgPanelRoot, panelKeyboard()))
}

// --- Free text within a flow ---

func (cs *curationService) handleText(ctx context.Context, evt Event) []Effect {
	if !cs.isAdmin(evt.UserID) {
		return []Effect{render(evt.ChatID, constant.MsgAdminOnly, nil)}
	}

	session, found := cs.sessionRepo.Get(evt.ChatID)
	if !found || !session.AwaitingInput() {
		return nil
	}

	text := strings.TrimSpace(evt.Text)

	switch session.State {
	case store.StateAddAwaitingQuestion, store.StatePhotoAwaitingQuest:
		if text == "" {
			return []Effect{render(evt.ChatID, constant.MsgAskQuestion, cancelKeyboard())}
		}
		session.PendingQuestion = text
		if session.State == store.StateAddAwaitingQuestion {
			session.State = store.StateAddAwaitingAnswer
		} else {
			session.State = store.StatePhotoAwaitingAnswer
		}
		cs.sessionRepo.Save(session)
		return []Effect{render(evt.ChatID, constant.MsgAskAnswer, cancelKeyboard())}

	case store.StateAddAwaitingAnswer, store.StatePhotoAwaitingAnswer:
		if session.PendingQuestion == "" {
			// Session lost mid-flow: abort rather than commit malformed data.
			cs.resetToRoot(evt.ChatID)
			return []Effect{render(evt.ChatID, constant.MsgSessionLost+"\n\n"+constant.MsgPanelRoot, panelKeyboard())}
		}
		if text == "" {
			return []Effect{render(evt.ChatID, constant.MsgAskAnswer, cancelKeyboard())}
		}
		return cs.commitEntry(ctx, evt, session.PendingQuestion, text)

	case store.StatePhotoAwaitingImage:
		return []Effect{render(evt.ChatID, constant.MsgAskPhoto, cancelKeyboard())}

	case store.StateDeleteAwaitingPick:
		return []Effect{render(evt.ChatID, constant.MsgUseButtons, nil)}
	}

	return nil
}

func (cs *curationService) commitEntry(ctx context.Context, evt Event, question, answer string) []Effect {
	if err := cs.archiveStore.Update(question, answer); err != nil {
		cs.reportStorageFailure("update", err)
		// State stays put: the curator may simply retry the answer.
		return []Effect{render(evt.ChatID, constant.MsgSaveFailed, cancelKeyboard())}
	}

	if err := cs.statsStore.MarkAdded(time.Now()); err != nil {
		cs.logger.Warn("Curation", "Failed to stamp last_added", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cs.publishMutation(ctx, dto.MutationUpsert, question)
	cs.emit(ctx, events.NewEntryUpserted(question))
	cs.logger.Info("Curation", "Entry committed", map[string]interface{}{"question": question})

	cs.resetToRoot(evt.ChatID)
	return []Effect{render(evt.ChatID, constant.MsgSaved+"\n\n"+constant.MsgPanelRoot, panelKeyboard())}
}

// --- Photo flow ---

func (cs *curationService) handlePhoto(ctx context.Context, evt Event) []Effect {
	if !cs.isAdmin(evt.UserID) {
		return nil
	}

	session, found := cs.sessionRepo.Get(evt.ChatID)
	if !found || session.State != store.StatePhotoAwaitingImage {
		return nil
	}

	path, err := cs.fileFetcher.DownloadFile(ctx, evt.PhotoFileID, cs.tempDir)
	if err != nil {
		cs.logger.Error("Curation", "Failed to download photo", map[string]interface{}{
			"error": err.Error(),
		})
		cs.resetToRoot(evt.ChatID)
		return []Effect{render(evt.ChatID, constant.MsgPhotoFetchFailed+"\n\n"+constant.MsgPanelRoot, panelKeyboard())}
	}
	// Scoped cleanup: the temp image goes away on success, failure or panic.
	defer os.Remove(path)

	extracted, err := cs.ocrProvider.Extract(path)
	if err != nil {
		cs.logger.Warn("Curation", "OCR extraction failed", map[string]interface{}{
			"error": err.Error(),
		})
		cs.resetToRoot(evt.ChatID)
		return []Effect{render(evt.ChatID, constant.MsgExtractionFailed+"\n\n"+constant.MsgPanelRoot, panelKeyboard())}
	}

	// The extraction is a prompt aid only; the curator types the final
	// question and only that text is ever committed.
	session.PendingExtracted = extracted
	session.State = store.StatePhotoAwaitingQuest
	cs.sessionRepo.Save(session)

	return []Effect{render(evt.ChatID, fmt.Sprintf(constant.ExtractedPromptFormat, extracted), cancelKeyboard())}
}

// --- Browse/list ---

func (cs *curationService) renderListPage(evt Event, page int) Effect {
	snapshot := cs.archiveStore.Snapshot()
	if len(snapshot) == 0 {
		return edit(evt.ChatID, evt.MessageID, constant.MsgListEmpty, backKeyboard())
	}

	maxPage := (len(snapshot) - 1) / cs.pageSize
	if page < 0 {
		page = 0
	}
	if page > maxPage {
		page = maxPage
	}

	start := page * cs.pageSize
	end := start + cs.pageSize
	if end > len(snapshot) {
		end = len(snapshot)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 Archive — page %d of %d\n", page+1, maxPage+1)
	for i, entry := range snapshot[start:end] {
		fmt.Fprintf(&b, "\n%d. %s\n→ %s\n", start+i+1, entry.Question, entry.Answer)
	}

	var nav []Button
	if page > 0 {
		nav = append(nav, Button{
			Label: "◀ Prev",
			Token: telegram.NewToken(constant.NSList, constant.ActionPage, strconv.Itoa(page-1)).Encode(),
		})
	}
	if page < maxPage {
		nav = append(nav, Button{
			Label: "Next ▶",
			Token: telegram.NewToken(constant.NSList, constant.ActionPage, strconv.Itoa(page+1)).Encode(),
		})
	}

	var rows [][]Button
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []Button{{Label: "« Back", Token: telegram.NewToken(constant.NSPanel, constant.ActionRoot, "").Encode()}})

	session := cs.loadOrCreate(evt.ChatID)
	session.ListPage = page
	cs.sessionRepo.Save(session)

	return edit(evt.ChatID, evt.MessageID, b.String(), rows)
}

// --- Helpers ---

func (cs *curationService) loadOrCreate(chatID int64) *store.Session {
	session, found := cs.sessionRepo.Get(chatID)
	if !found {
		session = &store.Session{ChatID: chatID, State: store.StatePanelRoot}
	}
	return session
}

func (cs *curationService) setState(chatID int64, state string) {
	session := cs.loadOrCreate(chatID)
	session.State = state
	session.PendingQuestion = ""
	session.PendingExtracted = ""
	session.DeletionCandidates = nil
	cs.sessionRepo.Save(session)
}

func (cs *curationService) resetToRoot(chatID int64) {
	cs.setState(chatID, store.StatePanelRoot)
}

func (cs *curationService) publishMutation(ctx context.Context, action, question string) {
	if cs.publisherService == nil {
		return
	}
	payload, err := json.Marshal(dto.ArchiveMutationMessage{Action: action, Question: question})
	if err != nil {
		return
	}
	if err := cs.publisherService.Publish(ctx, payload); err != nil {
		cs.logger.Warn("Curation", "Failed to publish mutation message", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
	}
}

func (cs *curationService) emit(ctx context.Context, event events.BaseEvent) {
	if cs.activityHub != nil {
		cs.activityHub.BroadcastEvent(event)
	}
	if cs.eventPublisher != nil {
		if err := cs.eventPublisher.Publish(ctx, event); err != nil {
			cs.logger.Warn("Curation", "Failed to publish domain event", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}
}

func (cs *curationService) reportStorageFailure(operation string, cause error) {
	cs.logger.Error("Curation", "Archive save failed", map[string]interface{}{
		"operation": operation,
		"error":     cause.Error(),
	})
	if cs.alertMailer != nil {
		_ = cs.alertMailer.SendStorageAlert(operation, cause)
	}
}

func displayLabel(question string) string {
	const maxLabel = 40
	runes := []rune(question)
	if len(runes) <= maxLabel {
		return question
	}
	return string(runes[:maxLabel-1]) + "…"
}

func panelKeyboard() [][]Button {
	return [][]Button{
		{
			{Label: "➕ Add", Token: telegram.NewToken(constant.NSPanel, constant.ActionAdd, "").Encode()},
			{Label: "📷 Add from photo", Token: telegram.NewToken(constant.NSPanel, constant.ActionPhoto, "").Encode()},
		},
		{
			{Label: "📚 List", Token: telegram.NewToken(constant.NSList, constant.ActionPage, "0").Encode()},
			{Label: "🗑 Delete", Token: telegram.NewToken(constant.NSPanel, constant.ActionDelete, "").Encode()},
		},
		{
			{Label: "📊 Stats", Token: telegram.NewToken(constant.NSPanel, constant.ActionStats, "").Encode()},
			{Label: "✖ Close", Token: telegram.NewToken(constant.NSPanel, constant.ActionClose, "").Encode()},
		},
	}
}

func cancelKeyboard() [][]Button {
	return [][]Button{
		{{Label: "Cancel", Token: telegram.NewToken(constant.NSPanel, constant.ActionCancel, "").Encode()}},
	}
}

func backKeyboard() [][]Button {
	return [][]Button{
		{{Label: "« Back", Token: telegram.NewToken(constant.NSPanel, constant.ActionRoot, "").Encode()}},
	}
}
