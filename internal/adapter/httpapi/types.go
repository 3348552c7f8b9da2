package httpapi

import (
	"time"

	"semnotes/internal/domain"
)

type captureRequest struct {
	OwnerID string `json:"owner_id"`
	Content string `json:"content"`
}

type captureResponse struct {
	NoteID string `json:"note_id"`
}

type searchRequest struct {
	OwnerID   string   `json:"owner_id"`
	Query     string   `json:"query"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type searchResult struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Similarity float64   `json:"similarity"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type reembedRequest struct {
	OwnerID  string `json:"owner_id"`
	Content  string `json:"content"`
	Revision int64  `json:"revision,omitempty"`
}

type reembedResponse struct {
	NoteID   string `json:"note_id"`
	Revision int64  `json:"revision"`
	Status   string `json:"status"`
}

type noteView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listResponse struct {
	Notes []noteView `json:"notes"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func toNoteView(n domain.Note) noteView {
	return noteView{
		ID:        n.ID,
		Content:   n.Content,
		Status:    string(n.Embedding.State),
		Error:     n.Embedding.Reason,
		Revision:  n.Revision,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toSearchResults(results []domain.SimilarityResult) []searchResult {
	out := make([]searchResult, len(results))
	for i, r := range results {
		out[i] = searchResult{
			ID:         r.Note.ID,
			Content:    r.Note.Content,
			CreatedAt:  r.Note.CreatedAt,
			Similarity: r.Score,
		}
	}
	return out
}
