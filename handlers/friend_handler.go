package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatlinkAPI/middleware"
	"chatlinkAPI/services"
)

type FriendHandler struct {
	friendService *services.FriendService
	userService   *services.UserService
}

func NewFriendHandler(friendService *services.FriendService, userService *services.UserService) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		userService:   userService,
	}
}

// LookupUser resolves ?email= to a user record plus storage ID, the same
// lookup the add-friend modal runs before sending a request.
func (h *FriendHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetUID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'email' is required")
		return
	}

	result, err := h.friendService.LookupUserByEmail(ctx, email)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	uid, ok := middleware.GetUID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	friends, err := h.friendService.GetFriends(ctx, uid)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}

type sendFriendRequestBody struct {
	ReceiverEmail string `json:"receiverEmail"`
}

// SendFriendRequest resolves the receiver by email, the sender from the
// token, and creates the pending request. Mirrors the add-friend flow of
// the mobile screen end to end.
func (h *FriendHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	uid, ok := middleware.GetUID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body sendFriendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receiver, err := h.friendService.LookupUserByEmail(ctx, body.ReceiverEmail)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	sender, err := h.userService.GetUserByID(ctx, uid)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	result, err := h.friendService.SendFriendRequest(ctx, sender.ID, receiver.StorageID, sender.Snapshot(), receiver.Record.Snapshot())
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

func (h *FriendHandler) ListIncomingRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	uid, ok := middleware.GetUID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	requests, err := h.friendService.ListIncomingRequests(ctx, uid)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

type respondToRequestBody struct {
	Accept bool `json:"accept"`
}

func (h *FriendHandler) RespondToFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	uid, ok := middleware.GetUID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	requestID := mux.Vars(r)["requestID"]
	if requestID == "" {
		respondWithError(w, http.StatusBadRequest, "Path parameter 'requestID' is required")
		return
	}

	var body respondToRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.friendService.RespondToFriendRequest(ctx, uid, requestID, body.Accept)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

type removeFriendBody struct {
	FriendEmail string `json:"friendEmail"`
	Confirmed   bool   `json:"confirmed"`
}

// RemoveFriend carries the confirm/cancel decision from the removal modal.
// Confirmed=false reaches the service and is a guaranteed no-op there, so
// a cancelled modal still returns its outcome message.
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	uid, ok := middleware.GetUID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body removeFriendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	friend, err := h.friendService.LookupUserByEmail(ctx, body.FriendEmail)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	actor, err := h.userService.GetUserByID(ctx, uid)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	result, err := h.friendService.RemoveFriend(ctx, actor.ID, actor.Email, friend.StorageID, friend.Record.Email, body.Confirmed)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
