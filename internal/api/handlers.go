// Package api provides the read-only REST API over mirrored data.
package api

import (
	"strconv"

	"github.com/go-fuego/fuego"
)

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	return HealthResponse{
		Status:  "ok",
		Version: "dev",
	}, nil
}

func (s *Server) listChats(c fuego.ContextNoBody) (ChatsListResponse, error) {
	chats, err := s.deps.ChatsRepo.List(c.Context())
	if err != nil {
		return ChatsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	resp := ChatsListResponse{Total: len(chats), Chats: make([]ChatResponse, 0, len(chats))}
	for i := range chats {
		count, err := s.deps.MessagesRepo.CountByChat(c.Context(), chats[i].ChatID)
		if err != nil {
			return ChatsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
		}
		resp.Chats = append(resp.Chats, ChatFromModel(&chats[i], count))
	}
	return resp, nil
}

func (s *Server) getChat(c fuego.ContextNoBody) (ChatResponse, error) {
	chatID := c.PathParam("id")
	if chatID == "" {
		return ChatResponse{}, fuego.BadRequestError{Detail: "Chat ID is required"}
	}

	chat, err := s.deps.ChatsRepo.GetByID(c.Context(), chatID)
	if err != nil {
		return ChatResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	if chat == nil {
		return ChatResponse{}, fuego.NotFoundError{Detail: "Chat not found"}
	}

	count, err := s.deps.MessagesRepo.CountByChat(c.Context(), chatID)
	if err != nil {
		return ChatResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	return ChatFromModel(chat, count), nil
}

func (s *Server) listMessages(c fuego.ContextNoBody) (MessagesListResponse, error) {
	chatID := c.PathParam("id")
	if chatID == "" {
		return MessagesListResponse{}, fuego.BadRequestError{Detail: "Chat ID is required"}
	}

	before := int64(parseIntWithDefault(c.QueryParam("before"), 0))
	limit := parseIntWithDefault(c.QueryParam("limit"), 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	messages, err := s.deps.MessagesRepo.ListByChat(c.Context(), chatID, before, limit)
	if err != nil {
		return MessagesListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	total, err := s.deps.MessagesRepo.CountByChat(c.Context(), chatID)
	if err != nil {
		return MessagesListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return MessagesListResponse{Messages: messages, Total: total}, nil
}

func (s *Server) listRuns(c fuego.ContextNoBody) (RunsListResponse, error) {
	limit := parseIntWithDefault(c.QueryParam("limit"), 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	runs, err := s.deps.RunsRepo.Recent(c.Context(), limit)
	if err != nil {
		return RunsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	resp := RunsListResponse{Runs: make([]RunResponse, 0, len(runs))}
	for i := range runs {
		resp.Runs = append(resp.Runs, RunFromModel(&runs[i]))
	}
	return resp, nil
}

func (s *Server) getSyncStatus(c fuego.ContextNoBody) (SyncStatusResponse, error) {
	resp := SyncStatusResponse{
		TelegramStatus: string(s.deps.TelegramClient.GetStatus()),
		QRInProgress:   s.deps.TelegramClient.IsQRInProgress(),
	}

	if current := s.deps.SyncManager.Current(); current != nil {
		mode := string(current.Mode)
		resp.Running = true
		resp.RunID = &current.ID
		resp.Mode = &mode
		resp.StartedAt = &current.StartedAt
	}
	return resp, nil
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
