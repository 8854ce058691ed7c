package constant

// Callback token namespaces
const (
	NSPanel  = "panel"
	NSList   = "list"
	NSDelete = "del"
)

// Panel actions
const (
	ActionAdd    = "add"
	ActionPhoto  = "photo"
	ActionList   = "list"
	ActionDelete = "delete"
	ActionStats  = "stats"
	ActionClose  = "close"
	ActionRoot   = "root"
	ActionCancel = "cancel"
	ActionPage   = "page"
	ActionPick   = "pick"
)

// Fixed user-facing messages. The no-match bodies differ by privilege on
// purpose: the curator gets an actionable internal-miss hint, everyone else
// a plain apology.
const (
	MsgWelcome = "Hi! Send me any trivia question and I'll answer it from the knowledge archive."

	MsgWelcomeAdminSuffix = "\n\nAs the curator, use /admin to open the control panel."

	MsgSearching = "⏳ Searching the knowledge archive..."

	MsgNoMatchUser = "Sorry, I couldn't find a confident answer to that question in my archive."

	MsgNoMatchAdmin = "No confident match in the internal knowledge archive."

	MsgAdminOnly = "This action is for the curator only."

	MsgPanelRoot = "Curator panel — pick an action:"

	MsgPanelClosed = "Panel closed."

	MsgCancelled = "Cancelled. Back to the panel."

	MsgFlowEnded = "Current flow cancelled."

	MsgAskQuestion = "Send the question text to store:"

	MsgAskAnswer = "Got it. Now send the answer:"

	MsgAskPhoto = "Send a photo of the question:"

	MsgSaved = "Saved ✅"

	MsgSaveFailed = "Failed to save the entry — the archive was not modified. Try again."

	MsgSessionLost = "Lost the pending question for this flow. Back to the panel."

	MsgExtractionFailed = "Couldn't read any text from that photo. Back to the panel."

	MsgPhotoFetchFailed = "Couldn't download that photo. Back to the panel."

	MsgUseButtons = "Use the buttons above, or Cancel."

	MsgDeletePrompt = "Pick the question to delete:"

	MsgDeleteEmpty = "The archive is empty — nothing to delete."

	MsgDeleteNotFound = "That entry no longer exists."

	MsgDeleteAmbiguous = "That selection is ambiguous — reopen the delete menu."

	MsgDeleted = "Deleted ✅"

	MsgListEmpty = "The archive is empty."

	MsgHelp = "Curator commands:\n/admin — control panel\n/cancel — abort the current flow\n/help — this message"
)

// ExtractedPromptFormat presents OCR output as a prompt aid only; the curator
// types the final question themselves and the extraction is never stored.
const ExtractedPromptFormat = "Extracted text (for reference, correct as needed):\n\n%s\n\nNow send the final question text:"
