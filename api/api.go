package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/edgeee/dailychallenge/api/validator"
	"github.com/edgeee/dailychallenge/calendar"
	"github.com/edgeee/dailychallenge/chat"
	"github.com/edgeee/dailychallenge/leaderboard"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// A DB provides a storage layer that persists messages, users and scores.
type DB interface {
	ListMessages(ctx context.Context, conversationID string, limit int, offset int, excludeMsgIDs ...string) ([]Message, error)
	InsertMessage(ctx context.Context, msg Message) (Message, error)
	InsertReaction(ctx context.Context, reaction Reaction) (Reaction, error)
	InsertUser(ctx context.Context, user User) (User, error)
	ListFriends(ctx context.Context, userID string) ([]chat.Friend, error)
	ListScores(ctx context.Context, date civil.Date) ([]Score, error)
	InsertPost(ctx context.Context, post Post) (Post, error)
	InsertFriendRequest(ctx context.Context, req FriendRequest) (FriendRequest, error)
	ListFriendRequests(ctx context.Context, recipientID string) ([]FriendRequest, error)
	DeleteFriendRequest(ctx context.Context, senderID, recipientID string) error
	AcceptFriendRequest(ctx context.Context, senderID, recipientID string) error
	DeleteFriendship(ctx context.Context, userID, friendID string) error
}

// A Cache provides a storage layer that caches the latest messages of each
// conversation.
type Cache interface {
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	InsertMessage(ctx context.Context, msg Message) error
	InsertReaction(ctx context.Context, messageID string, reaction Reaction) error
}

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	Val    *validator.Validator

	// Now defaults to time.Now.
	Now func() time.Time
	// Location is the zone message dates are computed in. Defaults to UTC.
	Location *time.Location

	once sync.Once
	mux  *http.ServeMux
}

const (
	// pageSize defines the default number of items displayed on a single page in pagination.
	pageSize = 10

	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100

	maxSearchLen = 100

	timeLabelLayout = "3:04 PM"
)

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /conversations/{conversationID}/messages", a.listMessages)
	mux.HandleFunc("POST /conversations/{conversationID}/messages", a.createMessage)
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.createReaction)
	mux.HandleFunc("POST /users", a.createUser)
	mux.HandleFunc("GET /users/{userID}/friends", a.listFriends)
	mux.HandleFunc("DELETE /users/{userID}/friends/{friendID}", a.removeFriend)
	mux.HandleFunc("GET /users/{userID}/friend-requests", a.listFriendRequests)
	mux.HandleFunc("POST /users/{userID}/friend-requests", a.sendFriendRequest)
	mux.HandleFunc("DELETE /users/{userID}/friend-requests/{recipientID}", a.unsendFriendRequest)
	mux.HandleFunc("POST /users/{userID}/friend-requests/{senderID}/accept", a.acceptFriendRequest)
	mux.HandleFunc("POST /users/{userID}/friend-requests/{senderID}/decline", a.declineFriendRequest)
	mux.HandleFunc("POST /challenges/{date}/posts", a.createPost)
	mux.HandleFunc("GET /leaderboard", a.getLeaderboard)
	mux.HandleFunc("GET /calendar", a.getCalendar)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path, "request_id", reqID)
	a.mux.ServeHTTP(w, r)
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *API) location() *time.Location {
	if a.Location != nil {
		return a.Location
	}
	return time.UTC
}

func (a *API) today() civil.Date {
	return civil.DateOf(a.now().In(a.location()))
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

// validateQuery checks a query parameter against a validator tag.
func (a *API) validateQuery(w http.ResponseWriter, name, value, tag string) bool {
	if errs := a.Val.Validate(value, tag); len(errs) > 0 {
		a.respondError(w, http.StatusBadRequest, fmt.Errorf("%s: %v", name, errs[0].Message), "Invalid "+name)
		return false
	}
	return true
}

// respondChange answers a request that changes state and returns no body.
func (a *API) respondChange(w http.ResponseWriter, err error, notFound, failed string) {
	switch {
	case errors.Is(err, ErrNotFound):
		a.respondError(w, http.StatusNotFound, err, notFound)
	case err != nil:
		a.respondError(w, http.StatusInternalServerError, err, failed)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeBody reads a JSON request body into v and closes it.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}

	err = r.Body.Close()
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return true
}

// queryInt returns the named query parameter as an int, or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return n, nil
}

// queryDate returns the named query parameter as a date, or def when absent.
func queryDate(r *http.Request, name string, def civil.Date) (civil.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}

// chatMessages converts stored messages into the grouping input. Dates and
// time labels are computed in the API's location. A message without a
// creation time keeps a zero date, which the grouping rejects.
func (a *API) chatMessages(msgs []Message) []chat.Message {
	loc := a.location()
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = chat.Message{
			ID:       m.ID,
			SenderID: m.UserID,
			Text:     m.Text,
		}
		if !m.CreatedAt.IsZero() {
			t := m.CreatedAt.In(loc)
			out[i].SentAtDate = civil.DateOf(t)
			out[i].SentAtTime = t.Format(timeLabelLayout)
		}
	}
	return out
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	type (
		message struct {
			chat.Message
			Reactions     []Reaction `json:"reactions"`
			ReactionCount int        `json:"reaction_count"`
		}
		batch struct {
			SenderID   string    `json:"sender_id"`
			Messages   []message `json:"messages"`
			FromViewer bool      `json:"from_viewer"`
		}
		section struct {
			Date    civil.Date `json:"date"`
			Title   string     `json:"title"`
			Batches []batch    `json:"batches"`
		}
		response struct {
			Sections []section `json:"sections"`
		}
	)

	conversationID := r.PathValue("conversationID")
	viewer := r.URL.Query().Get("viewer")

	page, err := queryInt(r, "page", 1)
	if err == nil && page < 1 {
		err = fmt.Errorf("page %d out of range", page)
	}
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid page")
		return
	}
	year, err := queryInt(r, "year", a.now().In(a.location()).Year())
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid year")
		return
	}

	// Cached messages lead the first page and are excluded from every
	// database page, so consecutive pages never overlap.
	cached, err := a.Cache.ListMessages(r.Context(), conversationID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
		return
	}
	a.Logger.Info("Got messages from cache", "conversation_id", conversationID, "count", len(cached))

	msgIDs := make([]string, len(cached))
	for i, msg := range cached {
		msgIDs[i] = msg.ID
	}

	dbMsgs, err := a.DB.ListMessages(r.Context(), conversationID, pageSize, pageSize*(page-1), msgIDs...)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
		return
	}
	a.Logger.Info("Got remaining messages from DB", "conversation_id", conversationID, "page", page, "count", len(dbMsgs))

	var msgs []Message
	if page == 1 {
		msgs = append(msgs, cached...)
	}
	msgs = append(msgs, dbMsgs...)

	sections, err := chat.GroupMessages(a.chatMessages(msgs), year)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not group messages")
		return
	}

	stored := make(map[string]Message, len(msgs))
	for _, m := range msgs {
		stored[m.ID] = m
	}

	res := response{
		Sections: make([]section, len(sections)),
	}
	for i, s := range sections {
		res.Sections[i] = section{
			Date:    s.Date,
			Title:   s.Title,
			Batches: make([]batch, len(s.Batches)),
		}
		for j, b := range s.Batches {
			out := batch{
				SenderID:   b.SenderID,
				Messages:   make([]message, len(b.Messages)),
				FromViewer: viewer != "" && b.SenderID == viewer,
			}
			for k, m := range b.Messages {
				src := stored[m.ID]
				reactions := src.Reactions
				if reactions == nil {
					reactions = []Reaction{}
				}
				out.Messages[k] = message{Message: m, Reactions: reactions, ReactionCount: src.ReactionCount}
			}
			res.Sections[i].Batches[j] = out
		}
	}

	a.respond(w, http.StatusOK, res)
}

func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			Text   string `json:"text" validate:"required,max=2000"`
			UserID string `json:"user_id" validate:"required"`
		}
		response struct {
			ID             string `json:"id"`
			ConversationID string `json:"conversation_id"`
			Text           string `json:"text"`
			UserID         string `json:"user_id"`
			CreatedAt      string `json:"created_at"`
		}
	)

	var body request
	if ok := a.decodeBody(w, r, &body); !ok {
		return
	}
	body.Text = strings.TrimSpace(body.Text)

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	msg, err := a.DB.InsertMessage(r.Context(), Message{
		ConversationID: r.PathValue("conversationID"),
		Text:           body.Text,
		UserID:         body.UserID,
		CreatedAt:      a.now(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert message")
		return
	}

	if err := a.Cache.InsertMessage(r.Context(), msg); err != nil {
		a.Logger.Error("Could not cache message", "error", err.Error())
	}

	res := response{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Text:           msg.Text,
		UserID:         msg.UserID,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339),
	}

	a.respond(w, http.StatusCreated, res)
}

func (a *API) createReaction(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			Type   string `json:"type" validate:"required"`
			Score  int    `json:"score" validate:"gte=0"`
			UserID string `json:"user_id" validate:"required"`
		}
		response struct {
			ID        string `json:"id"`         // reaction ID
			MessageID string `json:"message_id"` // message ID
			Type      string `json:"type"`       // reaction type, for example 'like', 'laugh', 'wow', 'thumbs_up'
			Score     int    `json:"score"`      // defaults to 1, can be any positive integer
			UserID    string `json:"user_id"`    // the user ID submitting the reaction
			CreatedAt string `json:"created_at"` // the date/time the reaction was created
		}
	)

	messageID := r.PathValue("messageID")
	var body request
	if ok := a.decodeBody(w, r, &body); !ok {
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}
	if body.Score == 0 {
		body.Score = 1
	}

	reaction, err := a.DB.InsertReaction(r.Context(), Reaction{
		MessageID: messageID,
		Type:      body.Type,
		Score:     body.Score,
		UserID:    body.UserID,
		CreatedAt: a.now(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, fmt.Sprintf("could not create reaction for message with id %s", messageID))
		return
	}

	if err := a.Cache.InsertReaction(r.Context(), messageID, reaction); err != nil {
		a.Logger.Error("Could not cache reaction", "error", err.Error())
	}

	a.respond(w, http.StatusCreated, response{
		ID:        reaction.ID,
		MessageID: reaction.MessageID,
		Type:      reaction.Type,
		Score:     reaction.Score,
		UserID:    reaction.UserID,
		CreatedAt: reaction.CreatedAt.Format(time.RFC3339),
	})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Name     string `json:"name" validate:"required,max=50"`
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"required,max=30,username"`
		Password string `json:"password" validate:"required,max=72,password"`
	}

	var body request
	if ok := a.decodeBody(w, r, &body); !ok {
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	body.Username = strings.ToLower(body.Username)

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create user")
		return
	}

	user, err := a.DB.InsertUser(r.Context(), User{
		Name:         body.Name,
		Email:        body.Email,
		Username:     body.Username,
		PasswordHash: string(hash),
		CreatedAt:    a.now(),
	})
	if errors.Is(err, ErrConflict) {
		a.respondError(w, http.StatusConflict, err, "Username or email is already taken")
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create user")
		return
	}

	a.respond(w, http.StatusCreated, user)
}

func (a *API) listFriends(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Friends  []chat.Friend        `json:"friends"`
		Sections []chat.FriendSection `json:"sections,omitempty"`
		Results  []string             `json:"results,omitempty"`
	}

	q := r.URL.Query().Get("q")
	if !a.validateQuery(w, "q", q, fmt.Sprintf("max=%d", maxSearchLen)) {
		return
	}

	userID := r.PathValue("userID")
	friends, err := a.DB.ListFriends(r.Context(), userID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list friends")
		return
	}
	if friends == nil {
		friends = []chat.Friend{}
	}

	res := response{Friends: friends}
	if q != "" {
		res.Results = chat.SearchFriends(friends, q)
	} else {
		res.Sections = chat.SectionFriends(friends)
	}

	a.respond(w, http.StatusOK, res)
}

func (a *API) removeFriend(w http.ResponseWriter, r *http.Request) {
	err := a.DB.DeleteFriendship(r.Context(), r.PathValue("userID"), r.PathValue("friendID"))
	a.respondChange(w, err, "Friend not found", "Could not remove friend")
}

func (a *API) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Requests []FriendRequest `json:"requests"`
	}

	reqs, err := a.DB.ListFriendRequests(r.Context(), r.PathValue("userID"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list friend requests")
		return
	}
	if reqs == nil {
		reqs = []FriendRequest{}
	}

	a.respond(w, http.StatusOK, response{Requests: reqs})
}

// sendFriendRequest invites the recipient. When the recipient already invited
// the sender, the two become friends and the request comes back accepted.
func (a *API) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	type request struct {
		RecipientID string `json:"recipient_id" validate:"required"`
	}

	senderID := r.PathValue("userID")
	var body request
	if ok := a.decodeBody(w, r, &body); !ok {
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}
	if body.RecipientID == senderID {
		a.respondError(w, http.StatusBadRequest, fmt.Errorf("user %s befriending itself", senderID), "Cannot send a friend request to yourself")
		return
	}

	req, err := a.DB.InsertFriendRequest(r.Context(), FriendRequest{
		SenderID:    senderID,
		RecipientID: body.RecipientID,
		CreatedAt:   a.now(),
	})
	if errors.Is(err, ErrConflict) {
		a.respondError(w, http.StatusConflict, err, "Already friends or a request is pending")
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not send friend request")
		return
	}

	a.respond(w, http.StatusCreated, req)
}

func (a *API) unsendFriendRequest(w http.ResponseWriter, r *http.Request) {
	err := a.DB.DeleteFriendRequest(r.Context(), r.PathValue("userID"), r.PathValue("recipientID"))
	a.respondChange(w, err, "Friend request not found", "Could not delete friend request")
}

func (a *API) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	err := a.DB.AcceptFriendRequest(r.Context(), r.PathValue("senderID"), r.PathValue("userID"))
	a.respondChange(w, err, "Friend request not found", "Could not accept friend request")
}

func (a *API) declineFriendRequest(w http.ResponseWriter, r *http.Request) {
	err := a.DB.DeleteFriendRequest(r.Context(), r.PathValue("senderID"), r.PathValue("userID"))
	a.respondChange(w, err, "Friend request not found", "Could not decline friend request")
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID  string `json:"user_id" validate:"required"`
		Caption string `json:"caption" validate:"max=500"`
		Score   int    `json:"score" validate:"gte=0"`
	}

	date, err := civil.ParseDate(r.PathValue("date"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid date")
		return
	}
	if today := a.today(); date.After(today) {
		a.respondError(w, http.StatusBadRequest, fmt.Errorf("challenge %s is after %s", date, today), "Challenge is not open yet")
		return
	}

	var body request
	if ok := a.decodeBody(w, r, &body); !ok {
		return
	}
	body.Caption = strings.TrimSpace(body.Caption)
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	post, err := a.DB.InsertPost(r.Context(), Post{
		UserID:        body.UserID,
		ChallengeDate: date,
		Caption:       body.Caption,
		Score:         body.Score,
		CreatedAt:     a.now(),
	})
	if errors.Is(err, ErrConflict) {
		a.respondError(w, http.StatusConflict, err, "Already posted for this challenge")
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create post")
		return
	}

	a.respond(w, http.StatusCreated, post)
}

func (a *API) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Date    civil.Date           `json:"date"`
		Entries []leaderboard.Ranked `json:"entries"`
		Viewer  *leaderboard.Ranked  `json:"viewer"`
	}

	date, err := queryDate(r, "date", a.today())
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid date")
		return
	}
	limit, err := queryInt(r, "limit", defaultLeaderboardSize)
	if err == nil && (limit < 1 || limit > maxLeaderboardSize) {
		err = fmt.Errorf("limit %d out of range", limit)
	}
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid limit")
		return
	}

	scores, err := a.DB.ListScores(r.Context(), date)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list scores")
		return
	}

	entries := make([]leaderboard.Entry, len(scores))
	for i, s := range scores {
		entries[i] = leaderboard.Entry{UserID: s.UserID, Username: s.Username, Score: s.Score}
	}
	ranked := leaderboard.Rank(entries)

	res := response{Date: date, Entries: ranked[:min(limit, len(ranked))]}
	if viewer := r.URL.Query().Get("viewer"); viewer != "" {
		if row, ok := leaderboard.Find(ranked, viewer); ok {
			res.Viewer = &row
		}
	}

	a.respond(w, http.StatusOK, res)
}

func (a *API) getCalendar(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Layout string       `json:"layout"`
		Dates  []civil.Date `json:"dates"`
	}

	ref, err := queryDate(r, "date", a.today())
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid date")
		return
	}

	q := r.URL.Query()
	res := response{Layout: q.Get("layout")}
	switch res.Layout {
	case "", "week":
		res.Layout = "week"
		start := time.Sunday
		if s := q.Get("start"); s != "" {
			start, err = calendar.ParseWeekday(s)
			if err != nil {
				a.respondError(w, http.StatusBadRequest, err, "Invalid start weekday")
				return
			}
		}
		res.Dates = calendar.WeekLayout(ref, start)
	case "month":
		res.Dates = calendar.MonthLayout(ref)
	default:
		a.respondError(w, http.StatusBadRequest, fmt.Errorf("unknown layout %q", res.Layout), "Invalid layout")
		return
	}

	a.respond(w, http.StatusOK, res)
}
