package dto

// Mutation actions carried on the archive mutation topic.
const (
	MutationUpsert = "upsert"
	MutationDelete = "delete"
)

// ArchiveMutationMessage is the payload published after every committed
// archive mutation; the consumer keeps the embedding index in sync with it.
type ArchiveMutationMessage struct {
	Action   string `json:"action"`
	Question string `json:"question"`
}

type ArchiveEntryResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ArchiveListResponse struct {
	Entries    []ArchiveEntryResponse `json:"entries"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalCount int                    `json:"total_count"`
	TotalPages int                    `json:"total_pages"`
}

type StatsResponse struct {
	KnownUsers int    `json:"known_users"`
	LastAdded  string `json:"last_added"`
	Entries    int    `json:"entries"`
}
