package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/config"
	"github.com/hpungsan/timecapsule/internal/errors"
	"github.com/hpungsan/timecapsule/internal/manager"
	"github.com/hpungsan/timecapsule/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	mgr *manager.Manager
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(mgr *manager.Manager, cfg *config.Config) *Handlers {
	return &Handlers{mgr: mgr, cfg: cfg}
}

// Request types for each tool

// FieldsRequest carries the capsule form fields.
type FieldsRequest struct {
	FriendName    string `json:"friendName"`
	FriendPhone   string `json:"friendPhone"`
	Message       string `json:"message"`
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
}

func (r FieldsRequest) fields() capsule.Fields {
	return capsule.Fields{
		Name:    r.FriendName,
		Contact: r.FriendPhone,
		Message: r.Message,
		Date:    r.ScheduledDate,
		Time:    r.ScheduledTime,
	}
}

// IDRequest represents the arguments for get, delete and dispatch.
type IDRequest struct {
	ID string `json:"id"`
}

// CountdownRequest represents the arguments for countdown.
type CountdownRequest struct {
	ID            string `json:"id,omitempty"`
	ScheduledDate string `json:"scheduledDate,omitempty"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
	Now           string `json:"now,omitempty"`
}

// ExportRequest represents the arguments for export.
type ExportRequest struct {
	FieldsRequest
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

// CountdownOutput is the countdown tool result.
type CountdownOutput struct {
	capsule.Countdown
	Text     string    `json:"text"`
	TargetAt time.Time `json:"target_at"`
}

// HandleCreate handles the create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	c, err := h.mgr.Create(ctx, input.fields())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(h.mgr.Describe(c))
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := h.mgr.List(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"items": items,
		"count": len(items),
	})
}

// HandleGet handles the get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	c, err := h.mgr.Get(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(h.mgr.Describe(c))
}

// HandleDelete handles the delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.mgr.Delete(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDispatch handles the dispatch tool call.
func (h *Handlers) HandleDispatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.mgr.Dispatch(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCountdown handles the countdown tool call.
func (h *Handlers) HandleCountdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CountdownRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	hasSchedule := input.ScheduledDate != "" || input.ScheduledTime != ""
	if (input.ID == "") == !hasSchedule {
		return errorResult(errors.NewInvalidRequest("specify either id or scheduledDate and scheduledTime")), nil
	}

	now := h.mgr.Now()
	if input.Now != "" {
		now, err = time.Parse(time.RFC3339, input.Now)
		if err != nil {
			return errorResult(errors.NewInvalidRequest("now must be an RFC 3339 timestamp")), nil
		}
	}

	var target time.Time
	if input.ID != "" {
		c, err := h.mgr.Get(ctx, input.ID)
		if err != nil {
			return errorResult(err), nil
		}
		target, err = c.Target(h.mgr.Location())
		if err != nil {
			return errorResult(err), nil
		}
	} else {
		target, err = capsule.ParseSchedule(input.ScheduledDate, input.ScheduledTime, h.mgr.Location())
		if err != nil {
			return errorResult(err), nil
		}
	}

	cd := capsule.TimeUntil(target, now)
	return successResult(CountdownOutput{
		Countdown: cd,
		Text:      cd.String(),
		TargetAt:  target,
	})
}

// HandleExport handles the export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	fields, err := ops.ResolveFields(ctx, h.mgr, input.ID, input.fields())
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.cfg, ops.ExportInput{
		Fields: fields,
		Path:   input.Path,
		Now:    h.mgr.Now(),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from an error.
// Wrapped capsule errors keep their code; the wrapper context is kept in the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.CapsuleError
	if stderrors.As(err, &cErr) {
		message := cErr.Message
		if prefix := strings.TrimSuffix(err.Error(), cErr.Error()); prefix != err.Error() && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": message,
			"status":  cErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
