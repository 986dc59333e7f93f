// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlan/services/planner/domain"
	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// StateSpec is the wire form of a world state.
type StateSpec struct {
	Name  string       `json:"name"`
	Facts []state.Fact `json:"facts"`
}

func (s StateSpec) toState() *state.State {
	name := s.Name
	if name == "" {
		name = "initial"
	}
	st := state.New(name)
	for _, f := range s.Facts {
		st.SetFact(f.Predicate, f.Subject, f.Value)
	}
	return st
}

func stateSpec(st *state.State) StateSpec {
	if st == nil {
		return StateSpec{}
	}
	return StateSpec{Name: st.Name, Facts: st.Facts()}
}

// PlanRequest is the body of POST /v1/plan.
type PlanRequest struct {
	State StateSpec `json:"state"`

	// Todos use the same shape as problem file entries: each names
	// exactly one of action, task, goal, or multigoal.
	Todos []domain.SubtaskSpec `json:"todos" binding:"required"`

	// IncludeTree adds a rendered solution tree to the response.
	IncludeTree bool `json:"include_tree"`

	// Options overrides planning limits for this request only.
	Options *htn.Options `json:"options"`
}

// PlannedAction is one step of a linearized plan.
type PlannedAction struct {
	Node int      `json:"node"`
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// PlanResponse is the body of a successful POST /v1/plan.
type PlanResponse struct {
	SessionID string          `json:"session_id"`
	Plan      []PlannedAction `json:"plan"`
	NodeCount int             `json:"node_count"`
	Tree      string          `json:"tree,omitempty"`
}

// ExecuteRequest is the body of POST /v1/execute.
type ExecuteRequest struct {
	State StateSpec `json:"state"`

	Todos []domain.SubtaskSpec `json:"todos" binding:"required"`

	// Options overrides planning and retry limits for this request only.
	Options *htn.Options `json:"options"`
}

// TraceStep is one executed action in an execution report.
type TraceStep struct {
	Name       string   `json:"name"`
	Args       []string `json:"args,omitempty"`
	DurationMS float64  `json:"duration_ms"`
}

// ExecuteResponse is the body of POST /v1/execute.
//
// Failed executions also use this shape, with Success false and
// FailureReason set; the trace then covers the work completed before
// the failure.
type ExecuteResponse struct {
	SessionID     string      `json:"session_id"`
	Success       bool        `json:"success"`
	RetriesUsed   int         `json:"retries_used"`
	FailureReason string      `json:"failure_reason,omitempty"`
	FinalState    StateSpec   `json:"final_state"`
	Trace         []TraceStep `json:"trace"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HandlePlan handles POST /v1/plan.
//
// Description:
//
//	Builds a solution tree for the requested todos against the request
//	state, using the currently loaded domain, and returns the
//	linearized plan.
//
// Response:
//
//	200 OK: PlanResponse
//	400 Bad Request: Malformed body or todo list
//	422 Unprocessable Entity: Planning failed (no applicable methods)
//	503 Service Unavailable: No domain loaded
func (s *Server) HandlePlan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandlePlan"))

	reg := s.provider.Current()
	if reg == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no domain loaded", Code: "DOMAIN_NOT_LOADED"})
		return
	}

	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	todos, err := domain.CompileTodos(req.Todos)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TODOS"})
		return
	}

	tree, err := htn.Plan(c.Request.Context(), reg, req.State.toState(), todos, s.requestOptions(req.Options, logger))
	if err != nil {
		logger.Warn("planning failed", slog.String("error", err.Error()))
		c.JSON(planStatus(err), ErrorResponse{Error: err.Error(), Code: "PLANNING_FAILED"})
		return
	}

	resp := PlanResponse{
		SessionID: tree.SessionID,
		Plan:      plannedActions(htn.Linearize(tree)),
		NodeCount: tree.Len(),
	}
	if req.IncludeTree {
		resp.Tree = tree.Render()
	}

	logger.Info("plan built",
		slog.String("session_id", tree.SessionID),
		slog.Int("actions", len(resp.Plan)))
	c.JSON(http.StatusOK, resp)
}

// HandleExecute handles POST /v1/execute.
//
// Description:
//
//	Plans and executes the requested todos in one shot, backtracking on
//	action failures within the retry budget. A failed execution still
//	returns 200 with Success false and the partial trace; only request
//	and planning errors map to error statuses.
//
// Response:
//
//	200 OK: ExecuteResponse
//	400 Bad Request: Malformed body or todo list
//	422 Unprocessable Entity: Planning failed before execution started
//	503 Service Unavailable: No domain loaded
func (s *Server) HandleExecute(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleExecute"))

	reg := s.provider.Current()
	if reg == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no domain loaded", Code: "DOMAIN_NOT_LOADED"})
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	todos, err := domain.CompileTodos(req.Todos)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TODOS"})
		return
	}

	opts := s.requestOptions(req.Options, logger)
	initial := req.State.toState()

	tree, err := htn.Plan(c.Request.Context(), reg, initial, todos, opts)
	if err != nil {
		logger.Warn("planning failed", slog.String("error", err.Error()))
		c.JSON(planStatus(err), ErrorResponse{Error: err.Error(), Code: "PLANNING_FAILED"})
		return
	}

	res, err := htn.Execute(c.Request.Context(), reg, initial, tree, opts)
	if err != nil && res == nil {
		logger.Error("execution failed without result", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "EXECUTION_FAILED"})
		return
	}

	logger.Info("execution finished",
		slog.String("session_id", res.SessionID),
		slog.Bool("success", res.Success),
		slog.Int("retries_used", res.RetriesUsed))
	c.JSON(http.StatusOK, executeResponse(res))
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /readyz. Ready means a domain is loaded.
func (s *Server) HandleReady(c *gin.Context) {
	if s.provider.Current() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no domain loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// requestOptions merges per-request overrides onto the server defaults.
//
// Only positive limit overrides are honored; the logger always comes
// from the server so request bodies cannot redirect diagnostics.
func (s *Server) requestOptions(override *htn.Options, logger *slog.Logger) *htn.Options {
	opts := *s.opts
	if override != nil {
		if override.MaxRetries > 0 {
			opts.MaxRetries = override.MaxRetries
		}
		if override.MaxDepth > 0 {
			opts.MaxDepth = override.MaxDepth
		}
		if override.MaxPlanLength > 0 {
			opts.MaxPlanLength = override.MaxPlanLength
		}
		if override.Verbose > 0 {
			opts.Verbose = override.Verbose
		}
	}
	opts.Logger = logger
	return &opts
}

func planStatus(err error) int {
	var perr *htn.PlanningError
	if errors.As(err, &perr) || errors.Is(err, htn.ErrNoMethods) ||
		errors.Is(err, htn.ErrMaxDepthExceeded) || errors.Is(err, htn.ErrMaxLengthExceeded) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func plannedActions(linear []htn.LinearAction) []PlannedAction {
	out := make([]PlannedAction, len(linear))
	for i, la := range linear {
		out[i] = PlannedAction{
			Node: int(la.Node),
			Name: la.Task.Name,
			Args: la.Task.Args,
		}
	}
	return out
}

func executeResponse(res *htn.Result) ExecuteResponse {
	trace := make([]TraceStep, len(res.Trace))
	for i, te := range res.Trace {
		trace[i] = TraceStep{
			Name:       te.Action.Name,
			Args:       te.Action.Args,
			DurationMS: float64(te.Duration.Microseconds()) / 1000.0,
		}
	}
	return ExecuteResponse{
		SessionID:     res.SessionID,
		Success:       res.Success,
		RetriesUsed:   res.RetriesUsed,
		FailureReason: res.FailureReason,
		FinalState:    stateSpec(res.FinalState),
		Trace:         trace,
	}
}

// getOrCreateRequestID returns the X-Request-ID header, minting one when
// absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}
