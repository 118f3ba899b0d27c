package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ai-deptdocs-be/internal/dto"
	"ai-deptdocs-be/internal/pkg/serverutils"
	"ai-deptdocs-be/pkg/rag/conversation"
	"ai-deptdocs-be/pkg/rag/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	ResetConversation(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type queryController struct {
	pipeline *stream.Coordinator
	sessions *conversation.Store
	llmModel string
}

func NewQueryController(pipeline *stream.Coordinator, sessions *conversation.Store, llmModel string) IQueryController {
	return &queryController{
		pipeline: pipeline,
		sessions: sessions,
		llmModel: llmModel,
	}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	r.Get("/query", c.Query)
	r.Post("/query", c.Query)
	r.Get("/query/ws", websocket.New(c.queryWS))
	r.Get("/reset-conversation", c.ResetConversation)
	r.Get("/health", c.Health)
}

func (c *queryController) parseRequest(ctx *fiber.Ctx) (*dto.QueryRequest, error) {
	var req dto.QueryRequest
	if ctx.Method() == fiber.MethodPost {
		if err := ctx.BodyParser(&req); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	} else {
		if err := ctx.QueryParser(&req); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Query streams the pipeline's answer over SSE. Events are JSON objects
// delivered as "data:" lines; the stream always closes with a terminal
// stream_end or error event.
func (c *queryController) Query(ctx *fiber.Ctx) error {
	req, err := c.parseRequest(ctx)
	if err != nil {
		return err
	}
	pipelineReq := toPipelineRequest(req, serverutils.SessionID(ctx))

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	pipeline := c.pipeline
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The fiber context is gone once this writer runs, so the
		// pipeline gets its own lifetime tied to the client connection.
		streamCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		emit := func(ev stream.Event) error {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				cancel()
				return err
			}
			if err := w.Flush(); err != nil {
				cancel()
				return err
			}
			return nil
		}

		if err := pipeline.Run(streamCtx, pipelineReq, emit); err != nil {
			log.Printf("[QUERY] SSE stream for session %s ended: %v", pipelineReq.SessionID, err)
		}
	}))
	return nil
}

// queryWS serves the same pipeline over a websocket. Each text message
// is one query; events come back as JSON frames.
func (c *queryController) queryWS(conn *websocket.Conn) {
	sessionID, _ := conn.Locals(serverutils.SessionLocalKey).(string)
	defer conn.Close()

	for {
		var req dto.QueryRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			_ = conn.WriteJSON(stream.Event{Type: stream.EventError, Message: err.Error()})
			continue
		}

		// A failed write means the client is gone; cancelling the query
		// context unwinds the in-flight model stream and enrichment.
		queryCtx, cancel := context.WithCancel(context.Background())
		emit := func(ev stream.Event) error {
			if err := conn.WriteJSON(ev); err != nil {
				cancel()
				return err
			}
			return nil
		}
		err := c.pipeline.Run(queryCtx, toPipelineRequest(&req, sessionID), emit)
		cancel()
		if err != nil {
			log.Printf("[QUERY] websocket stream for session %s ended: %v", sessionID, err)
			return
		}
	}
}

// ResetConversation drops the caller's conversation memory. The session
// key is derived from the client fingerprint, so no body is needed.
func (c *queryController) ResetConversation(ctx *fiber.Ctx) error {
	sessionID := serverutils.SessionID(ctx)
	c.sessions.Reset(sessionID)
	return ctx.JSON(serverutils.SuccessResponse("Conversation reset", dto.ResetConversationResponse{
		SessionId: sessionID,
	}))
}

func (c *queryController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(dto.HealthResponse{
		Status: "ok",
		Model:  c.llmModel,
	})
}

func toPipelineRequest(req *dto.QueryRequest, sessionID string) stream.QueryRequest {
	return stream.QueryRequest{
		SessionID:       sessionID,
		Query:           req.Query,
		Type:            req.QueryTypes,
		Year:            req.Year,
		TopK:            req.TopK,
		ExpansionWindow: req.ExpansionWindow,
	}
}
