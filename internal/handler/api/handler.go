package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"socialnet/internal/auth"
	"socialnet/internal/store"
	"socialnet/pkg/utils"
)

// Handler serves the single action-dispatch API endpoint the frontend and
// the chat client's directory resolution depend on.
type Handler struct {
	store  *store.Store
	signer *auth.Signer
}

// New creates the API handler.
func New(st *store.Store, signer *auth.Signer) *Handler {
	return &Handler{store: st, signer: signer}
}

// Handle dispatches POST /api by the action discriminator in the body.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch envelope.Action {
	case "signup":
		h.signup(w, body)
	case "login":
		h.login(w, body)
	case "get_followers":
		h.authenticated(w, r, h.getFollowers)
	case "get_following":
		h.authenticated(w, r, h.getFollowing)
	case "toggle_follow":
		h.authenticated(w, r, func(w http.ResponseWriter, claims auth.Claims) {
			h.toggleFollow(w, body, claims)
		})
	default:
		utils.RespondError(w, http.StatusBadRequest, "unknown action: "+envelope.Action)
	}
}

// authenticated verifies the bearer token before invoking the action.
func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request, action func(http.ResponseWriter, auth.Claims)) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	claims, err := h.signer.VerifyBearer(token)
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid bearer token")
		return
	}
	action(w, claims)
}

func (h *Handler) signup(w http.ResponseWriter, body []byte) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		Nickname  string `json:"nickname"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		utils.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if req.Nickname == "" {
		req.Nickname = req.Email
		if i := strings.IndexByte(req.Email, '@'); i > 0 {
			req.Nickname = req.Email[:i]
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("[api] hash password failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	userID, err := h.store.CreateUser(req.Email, hash, req.Nickname, req.FirstName, req.LastName)
	if errors.Is(err, store.ErrEmailTaken) {
		utils.RespondError(w, http.StatusConflict, "email already exists")
		return
	}
	if err != nil {
		log.Printf("[api] create user failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	log.Printf("[api] new user registered: %s (id=%d)", req.Email, userID)

	h.respondSession(w, http.StatusCreated, userID, req.Email)
}

func (h *Handler) login(w http.ResponseWriter, body []byte) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, hash, err := h.store.UserByEmail(req.Email)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		log.Printf("[api] fetch user failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := auth.VerifyPassword(hash, req.Password); err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondSession(w, http.StatusOK, user.ID, req.Email)
}

// respondSession issues the credential bundle the client stores locally.
func (h *Handler) respondSession(w http.ResponseWriter, status, userID int, email string) {
	token, err := h.signer.Bearer(auth.Claims{ID: userID, Email: email})
	if err != nil {
		log.Printf("[api] issue token failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.store.UserByID(userID)
	if err != nil {
		log.Printf("[api] fetch user %d failed: %v", userID, err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	utils.RespondJSON(w, status, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) getFollowers(w http.ResponseWriter, claims auth.Claims) {
	followers, err := h.store.Followers(claims.ID)
	if err != nil {
		log.Printf("[api] fetch followers failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch followers")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"followers": followers})
}

func (h *Handler) getFollowing(w http.ResponseWriter, claims auth.Claims) {
	following, err := h.store.Following(claims.ID)
	if err != nil {
		log.Printf("[api] fetch following failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch following")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"following": following})
}

func (h *Handler) toggleFollow(w http.ResponseWriter, body []byte, claims auth.Claims) {
	var req struct {
		UserID int `json:"userId"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.UserID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.store.CreateFollow(claims.ID, req.UserID); err != nil {
		log.Printf("[api] create follow failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to follow user")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "following"})
}
