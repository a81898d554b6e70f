package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
	"github.com/jakechorley/autoroster/pkg/core/services"
	"github.com/jakechorley/autoroster/pkg/core/workflow"
)

// TripRequest names the sheets of one trip and how to size it
type TripRequest struct {
	RosterSheetID     string `json:"rosterSheetId" binding:"required"`
	CommitmentSheetID string `json:"commitmentSheetId" binding:"required"`
	WaitlistSize      *int   `json:"waitlistSize" binding:"omitempty,min=0"`
	RosterLimit       int    `json:"rosterLimit" binding:"min=0"`
}

// TripOpener builds a Trip over the sheets named in a request
type TripOpener interface {
	OpenTrip(ctx context.Context, req TripRequest) (*services.Trip, error)
}

type RosterHandler struct {
	trips TripOpener
}

func NewRosterHandler(trips TripOpener) *RosterHandler {
	return &RosterHandler{trips: trips}
}

type allocateRequest struct {
	TripRequest
	Policy string `json:"policy"`
	DryRun bool   `json:"dryRun"`
}

type manualRequest struct {
	TripRequest
	Decisions []allocator.Decision `json:"decisions" binding:"required"`
}

type applicantResponse struct {
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Priority *int              `json:"priority"`
	IsDriver bool              `json:"isDriver"`
	IsEboard bool              `json:"isEboard"`
	Gender   model.Gender      `json:"gender"`
	State    model.RosterState `json:"state"`
}

type capacityResponse struct {
	DriverCount          int  `json:"driverCount"`
	SeatsPerDriver       int  `json:"seatsPerDriver"`
	TotalRosterCapacity  int  `json:"totalRosterCapacity"`
	AlreadyRostered      int  `json:"alreadyRostered"`
	RemainingRosterSlots int  `json:"remainingRosterSlots"`
	WaitlistSize         int  `json:"waitlistSize"`
	Overbooked           bool `json:"overbooked"`
}

type exclusionResponse struct {
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Reason pool.Reason `json:"reason"`
}

type decisionResponse struct {
	Policy     allocator.Policy    `json:"policy"`
	DryRun     bool                `json:"dryRun"`
	Capacity   capacityResponse    `json:"capacity"`
	Counts     allocator.Counts    `json:"counts"`
	Overage    allocator.Overage   `json:"overage"`
	Applicants []applicantResponse `json:"applicants"`
	Added      int                 `json:"added"`
	Skipped    int                 `json:"skipped"`
}

// Capacity reports the trip size and who is in the pool
func (h *RosterHandler) Capacity(c *gin.Context) {
	var req TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	trip, err := h.trips.OpenTrip(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	plan, err := trip.Plan(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	exclusions := make([]exclusionResponse, 0, len(plan.Pool.Exclusions))
	for _, e := range plan.Pool.Exclusions {
		exclusions = append(exclusions, exclusionResponse{Email: e.Email, Name: e.Name, Reason: e.Reason})
	}

	c.JSON(http.StatusOK, gin.H{
		"capacity":   toCapacityResponse(plan.Capacity),
		"rostered":   toApplicantResponses(plan.Pool.Rostered),
		"candidates": toApplicantResponses(plan.Pool.Candidates),
		"exclusions": exclusions,
	})
}

// Allocate runs a policy over the trip, writing the result unless dryRun is set
func (h *RosterHandler) Allocate(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	policy, err := allocator.ParsePolicy(req.Policy)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	trip, err := h.openAtDecision(c.Request.Context(), req.TripRequest)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var decision services.DecisionResult
	if req.DryRun {
		decision, err = trip.Allocate(c.Request.Context(), policy)
	} else {
		decision, err = trip.DecideAutomated(c.Request.Context(), policy)
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDecisionResponse(decision, req.DryRun))
}

// Manual writes the operator's handpicked states
func (h *RosterHandler) Manual(c *gin.Context) {
	var req manualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	trip, err := h.openAtDecision(c.Request.Context(), req.TripRequest)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	decision, err := trip.DecideManually(c.Request.Context(), req.Decisions)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDecisionResponse(decision, false))
}

// Compare reports the gender balancing trade-off without writing anything
func (h *RosterHandler) Compare(c *gin.Context) {
	var req TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	trip, err := h.trips.OpenTrip(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	comparison, tripCapacity, err := trip.ComparePolicies(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"capacity":   toCapacityResponse(tripCapacity),
		"comparison": comparison,
		"message":    comparison.Message(),
	})
}

// openAtDecision opens a trip whose eboard and drivers are already on the roster sheet
func (h *RosterHandler) openAtDecision(ctx context.Context, req TripRequest) (*services.Trip, error) {
	trip, err := h.trips.OpenTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := trip.SkipTo(workflow.DecidingRoster); err != nil {
		return nil, err
	}
	return trip, nil
}

func toCapacityResponse(c capacity.Capacity) capacityResponse {
	return capacityResponse{
		DriverCount:          c.DriverCount,
		SeatsPerDriver:       c.SeatsPerDriver,
		TotalRosterCapacity:  c.TotalRosterCapacity,
		AlreadyRostered:      c.AlreadyRostered,
		RemainingRosterSlots: c.RemainingRosterSlots,
		WaitlistSize:         c.WaitlistSize,
		Overbooked:           c.Overbooked,
	}
}

func toApplicantResponses(applicants []model.Applicant) []applicantResponse {
	out := make([]applicantResponse, 0, len(applicants))
	for _, a := range applicants {
		out = append(out, applicantResponse{
			Name:     a.Name,
			Email:    a.Email,
			Priority: a.Priority,
			IsDriver: a.IsDriver,
			IsEboard: a.IsEboard,
			Gender:   a.Gender,
			State:    a.RosterState,
		})
	}
	return out
}

func toDecisionResponse(d services.DecisionResult, dryRun bool) decisionResponse {
	return decisionResponse{
		Policy:     d.Policy,
		DryRun:     dryRun,
		Capacity:   toCapacityResponse(d.Capacity),
		Counts:     d.Counts,
		Overage:    d.Overage,
		Applicants: toApplicantResponses(d.Allocation),
		Added:      len(d.Commit.Written),
		Skipped:    len(d.Commit.Skipped),
	}
}
