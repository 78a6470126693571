package server

import (
	"context"
	"log"
	"net/http"

	"github.com/boovboyz/azurerag/internal/auth"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// Answerer is the answering flow behind the query endpoints.
// *rag.Chain satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
	AnswerSecure(ctx context.Context, question string, principals auth.PrincipalSet) (string, error)
}

// Handlers holds the HTTP handlers for the query API.
type Handlers struct {
	chain Answerer
}

// Ask answers a question with no permission filtering at all. Every
// indexed document is searchable, credential or not.
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.chain.Answer(r.Context(), question)
	if err != nil {
		log.Printf("ERROR: answering failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":        answer,
		"authenticated": false,
		"warning":       "No permission filtering applied",
	})
}

// AskSecure answers a question with permission filtering based on the
// caller's principals. In anonymous-degrade mode a credential-less
// caller reaches this handler with no identity and retrieves nothing.
func (h *Handlers) AskSecure(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	principals := auth.PrincipalsFromContext(r.Context())
	answer, err := h.chain.AnswerSecure(r.Context(), question, principals)
	if err != nil {
		log.Printf("ERROR: secure answering failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to answer question")
		return
	}

	response := map[string]any{
		"answer":        answer,
		"authenticated": false,
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		response["authenticated"] = true
		response["user"] = map[string]any{
			"id":           identity.Subject,
			"email":        identity.Email,
			"name":         identity.Name,
			"groups_count": len(identity.Groups),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// Me reports the authenticated caller's identity and resolved principals.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        identity.Subject,
		"email":          identity.Email,
		"name":           identity.Name,
		"groups":         identity.Groups,
		"all_principals": auth.Resolve(identity).IDs(),
	})
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": Version,
	})
}
