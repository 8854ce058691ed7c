package store

// Entry is a single archive item: a question key and its opaque answer.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session represents the active curator conversation state in memory
type Session struct {
	ChatID int64  `json:"chat_id"`
	State  string `json:"state"`

	// Captured along the add / photo flows
	PendingQuestion  string `json:"pending_question"`
	PendingExtracted string `json:"pending_extracted"`

	// Snapshot of question keys offered on the delete keyboard
	DeletionCandidates []string `json:"deletion_candidates"`

	// Current page of the browse view
	ListPage int `json:"list_page"`
}

const (
	StateIdle                = "IDLE"
	StatePanelRoot           = "PANEL_ROOT"
	StateAddAwaitingQuestion = "ADD_AWAITING_QUESTION"
	StateAddAwaitingAnswer   = "ADD_AWAITING_ANSWER"
	StatePhotoAwaitingImage  = "PHOTO_AWAITING_IMAGE"
	StatePhotoAwaitingQuest  = "PHOTO_AWAITING_QUESTION"
	StatePhotoAwaitingAnswer = "PHOTO_AWAITING_ANSWER"
	StateDeleteAwaitingPick  = "DELETE_AWAITING_SELECTION"
)

// AwaitingInput reports whether the session expects the next free-text or
// photo message, i.e. it belongs to the curation machine, not the resolver.
// The panel root does not capture input: an admin typing there is just
// asking a question.
func (s *Session) AwaitingInput() bool {
	switch s.State {
	case StateAddAwaitingQuestion, StateAddAwaitingAnswer,
		StatePhotoAwaitingImage, StatePhotoAwaitingQuest,
		StatePhotoAwaitingAnswer, StateDeleteAwaitingPick:
		return true
	}
	return false
}
