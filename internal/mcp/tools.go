package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// fieldOptions are the five capsule form fields shared by create and export.
func fieldOptions(required bool) []mcp.ToolOption {
	prop := func(desc string) []mcp.PropertyOption {
		opts := []mcp.PropertyOption{mcp.Description(desc)}
		if required {
			opts = append(opts, mcp.Required())
		}
		return opts
	}
	return []mcp.ToolOption{
		mcp.WithString("friendName", prop("Recipient's display name")...),
		mcp.WithString("friendPhone", prop("Recipient's phone number in any format; digits are kept")...),
		mcp.WithString("message", prop("Message text to deliver")...),
		mcp.WithString("scheduledDate", prop("Delivery date, YYYY-MM-DD")...),
		mcp.WithString("scheduledTime", prop("Delivery time, HH:MM (24h, local)")...),
	}
}

var createToolDef = mcp.NewTool("capsule_create",
	append([]mcp.ToolOption{
		mcp.WithDescription("Schedule a new time capsule. All five fields are required. The capsule becomes due once the scheduled local date and time is reached."),
	}, fieldOptions(true)...)...,
)

var listToolDef = mcp.NewTool("capsule_list",
	mcp.WithDescription("List all scheduled capsules in creation order, with state and countdown."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("capsule_get",
	mcp.WithDescription("Get one capsule by ID, with state and countdown."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var deleteToolDef = mcp.NewTool("capsule_delete",
	mcp.WithDescription("Delete a capsule by ID. Deleting an unknown ID is a no-op and reports deleted=false."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithDestructiveHintAnnotation(true),
)

var dispatchToolDef = mcp.NewTool("capsule_dispatch",
	mcp.WithDescription("Build the WhatsApp deep link for a due capsule and hand it off. Fails with NOT_DUE before the scheduled time."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ID")),
)

var countdownToolDef = mcp.NewTool("capsule_countdown",
	mcp.WithDescription("Time left until a capsule is due, as days, hours and minutes. Pass either an id or a scheduledDate/scheduledTime pair."),
	mcp.WithString("id", mcp.Description("Capsule ID")),
	mcp.WithString("scheduledDate", mcp.Description("Target date, YYYY-MM-DD")),
	mcp.WithString("scheduledTime", mcp.Description("Target time, HH:MM")),
	mcp.WithString("now", mcp.Description("Reference instant, RFC 3339 (default: current time)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("capsule_export",
	append([]mcp.ToolOption{
		mcp.WithDescription("Write a capsule to a plain-text file. Pass either an id of a stored capsule or all five fields."),
		mcp.WithString("id", mcp.Description("Capsule ID (mutually exclusive with the fields)")),
		mcp.WithString("path", mcp.Description("Output .txt path (default: exports dir, TimeCapsule_<name>_<ms>.txt)")),
	}, fieldOptions(false)...)...,
)
