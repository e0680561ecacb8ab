package server

import (
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/services"
	"net/http"
	"strconv"

	"github.com/samber/lo"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var body createRoomRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	room, err := s.rooms.Create(r.Context(), identity(r), services.CreateRoomRequest{Name: body.Name})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoomView(room))
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.List(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(rooms, func(room domain.Room, _ int) roomView { return toRoomView(room) }))
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	detail, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, roomDetailView{roomView: toRoomView(detail.Room), Messages: toMessageViews(detail.Messages)})
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err = s.rooms.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	room, err := s.rooms.Join(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomView(room))
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	userID, err := pathUserID(r, "userId")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err = s.rooms.RemoveMember(r.Context(), identity(r), id, userID); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listMessages pages backwards: ?before=<sequence>&limit=<n>.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var before uint64
	if raw := r.URL.Query().Get("before"); raw != "" {
		if before, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeError(w, r, s.log, errors.ErrInvalidRequest)
			return
		}
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	messages, err := s.rooms.Messages(r.Context(), identity(r), id, before, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageViews(messages))
}

func (s *Server) searchMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	messages, err := s.rooms.Search(r.Context(), identity(r), id, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageViews(messages))
}
