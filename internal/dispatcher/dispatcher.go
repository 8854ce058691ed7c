package dispatcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-trivia-bot/internal/constant"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/service"
	"ai-trivia-bot/pkg/telegram"
)

// BotAPI is the slice of the Bot API client the dispatcher drives.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// Dispatcher owns the long-poll loop. Updates are fanned out to one worker
// goroutine per conversation, so different chats proceed concurrently while
// each conversation stays strictly in order.
type Dispatcher struct {
	api         BotAPI
	curation    service.ICurationService
	query       service.IQueryService
	adminChatID int64
	pollTimeout int
	logger      logger.ILogger

	mu      sync.Mutex
	workers map[int64]chan telegram.Update
	wg      sync.WaitGroup
}

func New(
	api BotAPI,
	curation service.ICurationService,
	query service.IQueryService,
	adminChatID int64,
	pollTimeout int,
	log logger.ILogger,
) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Dispatcher{
		api:         api,
		curation:    curation,
		query:       query,
		adminChatID: adminChatID,
		pollTimeout: pollTimeout,
		logger:      log,
		workers:     make(map[int64]chan telegram.Update),
	}
}

// Run polls until ctx is cancelled, then drains the per-chat workers.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Dispatcher", "Long-poll loop started", map[string]interface{}{
		"poll_timeout_sec": d.pollTimeout,
	})

	var offset int64
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return
		default:
		}

		updates, err := d.api.GetUpdates(ctx, offset, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				d.shutdown()
				return
			}
			d.logger.Warn("Dispatcher", "GetUpdates failed, backing off", map[string]interface{}{
				"error": err.Error(),
			})
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				d.shutdown()
				return
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			d.route(ctx, update)
		}
	}
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	for _, ch := range d.workers {
		close(ch)
	}
	d.workers = make(map[int64]chan telegram.Update)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Dispatcher", "Long-poll loop stopped", nil)
}

// route hands the update to its conversation's worker, creating one lazily.
func (d *Dispatcher) route(ctx context.Context, update telegram.Update) {
	chatID, ok := conversationID(update)
	if !ok {
		return
	}

	d.mu.Lock()
	ch, exists := d.workers[chatID]
	if !exists {
		ch = make(chan telegram.Update, 16)
		d.workers[chatID] = ch
		d.wg.Add(1)
		go d.worker(ctx, ch)
	}
	d.mu.Unlock()

	select {
	case ch <- update:
	default:
		d.logger.Warn("Dispatcher", "Conversation queue full, dropping update", map[string]interface{}{
			"chat_id":   chatID,
			"update_id": update.UpdateID,
		})
	}
}

func (d *Dispatcher) worker(ctx context.Context, ch <-chan telegram.Update) {
	defer d.wg.Done()
	for update := range ch {
		d.HandleUpdate(ctx, update)
	}
}

func conversationID(update telegram.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

// HandleUpdate classifies one update and plays the resulting effects.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	effects := d.curation.Handle(ctx, service.Event{
		Kind:         service.EventCallback,
		ChatID:       cb.Message.Chat.ID,
		UserID:       cb.From.ID,
		MessageID:    cb.Message.MessageID,
		CallbackID:   cb.ID,
		CallbackData: cb.Data,
	})
	d.play(ctx, effects)
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if len(msg.Photo) > 0 {
		// Telegram sends sizes smallest first; OCR wants the largest.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		d.play(ctx, d.curation.Handle(ctx, service.Event{
			Kind:        service.EventPhoto,
			ChatID:      chatID,
			UserID:      userID,
			PhotoFileID: fileID,
		}))
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if name, isCommand := parseCommand(text); isCommand {
		d.play(ctx, d.curation.Handle(ctx, service.Event{
			Kind:    service.EventCommand,
			ChatID:  chatID,
			UserID:  userID,
			Command: name,
		}))
		return
	}

	if d.curation.AwaitingInput(chatID) {
		d.play(ctx, d.curation.Handle(ctx, service.Event{
			Kind:   service.EventText,
			ChatID: chatID,
			UserID: userID,
			Text:   text,
		}))
		return
	}

	d.answerQuestion(ctx, chatID, userID, text)
}

// answerQuestion renders the search acknowledgment immediately and then
// edits it in place with the outcome, so the conversation shows a single
// message for the whole lookup.
func (d *Dispatcher) answerQuestion(ctx context.Context, chatID, userID int64, question string) {
	messageID, err := d.api.SendMessage(ctx, chatID, constant.MsgSearching, nil)
	if err != nil {
		d.logger.Error("Dispatcher", "Failed to send search acknowledgment", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return
	}

	resp := d.query.Ask(ctx, question, userID == d.adminChatID)

	if err := d.api.EditMessageText(ctx, chatID, messageID, resp.Message, nil); err != nil {
		d.logger.Error("Dispatcher", "Failed to edit search result", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

func (d *Dispatcher) play(ctx context.Context, effects []service.Effect) {
	for _, effect := range effects {
		var err error
		switch effect.Kind {
		case service.EffectRender:
			_, err = d.api.SendMessage(ctx, effect.ChatID, effect.Text, markup(effect.Buttons))
		case service.EffectEdit:
			err = d.api.EditMessageText(ctx, effect.ChatID, effect.MessageID, effect.Text, markup(effect.Buttons))
		case service.EffectAck:
			err = d.api.AnswerCallbackQuery(ctx, effect.CallbackID, effect.Text, effect.Alert)
		}
		if err != nil {
			d.logger.Warn("Dispatcher", "Failed to play effect", map[string]interface{}{
				"chat_id": effect.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

func markup(buttons [][]service.Button) *telegram.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		cells := make([]telegram.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			cells = append(cells, telegram.InlineKeyboardButton{
				Text:         btn.Label,
				CallbackData: btn.Token,
			})
		}
		rows = append(rows, cells)
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// parseCommand recognizes "/name" and "/name@BotName" at the start of a
// message, returning the bare command name.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}
