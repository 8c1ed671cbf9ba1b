package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"lg/nuvision-api/internal/bio"
	"lg/nuvision-api/internal/budget"
	"lg/nuvision-api/internal/vision"
)

/* ─── Tool parameters ────────────────────────────────────────────────── */

// analyzeMealParams are the arguments of the analyze_meal tool. The image is
// base64, optionally as a data URL.
type analyzeMealParams struct {
	ImageBase64 string         `json:"image_base64" description:"Base64 image of the meal, optionally a data: URL"`
	MIMEType    string         `json:"mime_type,omitempty" description:"Image MIME type (sniffed when omitted)"`
	Credential  string         `json:"credential" description:"Vision service API key"`
	Profile     profileRequest `json:"profile" description:"Body profile used for the daily target"`
}

// toolHandler runs one tool call and returns the value to serialize.
type toolHandler func(h *Handler, c *gin.Context, req *protocol.CallToolRequest) (interface{}, error)

// mcpTools maps tool names to handlers.
var mcpTools = map[string]toolHandler{
	"compute_daily_target": (*Handler).toolComputeDailyTarget,
	"analyze_meal":         (*Handler).toolAnalyzeMeal,
	"reconcile_budget":     (*Handler).toolReconcileBudget,
}

// extractParams converts the request arguments into target via JSON.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return nil
}

// paramError marks tool arguments that could not be decoded or used.
type paramError struct{ err error }

func (e paramError) Error() string { return e.err.Error() }
func (e paramError) Unwrap() error { return e.err }

func badParams(err error) error { return paramError{err: err} }

/* ─── Endpoint ───────────────────────────────────────────────────────── */

// handleMCP serves MCP tool calls over plain HTTP POST /mcp. The body is a
// CallToolRequest; the reply is a CallToolResult holding one JSON text item.
func (h *Handler) handleMCP(c *gin.Context) {
	if !limitBody(c, maxRequestBytes) {
		return
	}
	var request protocol.CallToolRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		if bodyTooLarge(err) {
			apiError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body must be at most %d bytes", maxRequestBytes))
			return
		}
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	tool, ok := mcpTools[request.Name]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("unknown tool: %s", request.Name))
		return
	}

	data, err := tool(h, c, &request)
	var pe paramError
	if errors.As(err, &pe) {
		apiError(c, http.StatusBadRequest, "invalid arguments: "+pe.Error())
		return
	}
	if err != nil {
		apiFailure(c, err)
		return
	}

	result, err := createJSONResponse(data)
	if err != nil {
		apiError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

/* ─── Tools ──────────────────────────────────────────────────────────── */

func (h *Handler) toolComputeDailyTarget(c *gin.Context, req *protocol.CallToolRequest) (interface{}, error) {
	var params profileRequest
	if err := extractParams(req, &params); err != nil {
		return nil, badParams(err)
	}
	p, err := params.toProfile()
	if err != nil {
		return nil, err
	}
	return bio.ComputeTarget(p)
}

func (h *Handler) toolAnalyzeMeal(c *gin.Context, req *protocol.CallToolRequest) (interface{}, error) {
	var params analyzeMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, badParams(err)
	}

	mimeType, payload := mimeFromDataURL(params.ImageBase64)
	if params.MIMEType != "" {
		mimeType = params.MIMEType
	}
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, badParams(fmt.Errorf("image_base64: %w", err))
	}
	if len(image) > maxImageBytes {
		return nil, badParams(fmt.Errorf("image must be at most %d bytes", maxImageBytes))
	}
	visionReq, err := vision.NewRequest(image, mimeType)
	if err != nil {
		return nil, badParams(err)
	}

	p, err := h.resolveProfile(c.Request.Context(), params.Profile)
	if err != nil {
		return nil, err
	}
	return h.runAnalysis(c.Request.Context(), p, params.Credential, visionReq)
}

func (h *Handler) toolReconcileBudget(c *gin.Context, req *protocol.CallToolRequest) (interface{}, error) {
	var params reconcileRequest
	if err := extractParams(req, &params); err != nil {
		return nil, badParams(err)
	}
	if params.TargetCalories == nil || params.TotalCalories == nil {
		return nil, badParams(fmt.Errorf("target_calories and total_calories are required"))
	}
	if *params.TotalCalories < 0 {
		return nil, badParams(fmt.Errorf("total_calories must not be negative"))
	}
	return budget.Remaining(*params.TargetCalories, *params.TotalCalories), nil
}
