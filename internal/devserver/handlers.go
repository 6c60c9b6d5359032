package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mintelligence/connectx-go/internal/validation"
)

type handlers struct {
	store Store
	log   zerolog.Logger
}

type identifyOptions struct {
	UpdateCustomer   bool                        `json:"updateCustomer"`
	UpdateSomeFields map[string]any              `json:"updateSomeFields"`
	Customs          []map[string]map[string]any `json:"customs"`
}

type identifyRequest struct {
	Key       string           `json:"key"`
	Customers map[string]any   `json:"customers"`
	Tracking  map[string]any   `json:"tracking"`
	Form      map[string]any   `json:"form"`
	Options   *identifyOptions `json:"options"`
}

type ticketRequest struct {
	Key       string                      `json:"key"`
	Customers map[string]any              `json:"customers"`
	Ticket    map[string]any              `json:"ticket"`
	Tracking  map[string]any              `json:"tracking"`
	Lead      map[string]any              `json:"lead"`
	Customs   []map[string]map[string]any `json:"customs"`
}

// generateCookie hands out a fresh anonymous id as plain text.
func (h *handlers) generateCookie(c *gin.Context) {
	c.String(http.StatusOK, uuid.NewString())
}

func (h *handlers) track(c *gin.Context) {
	org := OrganizationID(c)

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", "invalid JSON payload")
		return
	}
	name, _ := body["cx_event"].(string)
	if strings.TrimSpace(name) == "" {
		abortError(c, http.StatusBadRequest, "validation_error", "cx_event required")
		return
	}
	if !sameOrg(c, org, body["organizeId"]) {
		return
	}

	ev := Event{ID: uuid.NewString(), OrganizeID: org, Name: name, Payload: body}
	if err := h.store.AppendEvent(c.Request.Context(), ev); err != nil {
		h.internalError(c, "append event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": ev.ID})
}

func (h *handlers) identify(c *gin.Context) {
	org := OrganizationID(c)

	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", "invalid JSON payload")
		return
	}
	if req.Key == "" {
		abortError(c, http.StatusBadRequest, "validation_error", "key required")
		return
	}
	if !sameOrg(c, org, req.Tracking["organizeId"]) {
		return
	}

	in := IdentifyInput{
		Key:      req.Key,
		Customer: req.Customers,
		Cookie:   stringField(req.Tracking, "cx_cookie"),
	}
	if req.Options != nil {
		in.Options = IdentifyOptions{
			UpdateCustomer:   req.Options.UpdateCustomer,
			UpdateSomeFields: req.Options.UpdateSomeFields,
			Customs:          decodeCustoms(req.Options.Customs),
		}
	}

	customer, err := h.store.Identify(c.Request.Context(), org, in)
	if err != nil {
		h.internalError(c, "identify", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handlers) openTicket(c *gin.Context) {
	org := OrganizationID(c)

	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", "invalid JSON payload")
		return
	}
	if req.Key == "" {
		abortError(c, http.StatusBadRequest, "validation_error", "key required")
		return
	}
	for _, field := range []string{"cx_channel", "cx_subject"} {
		if strings.TrimSpace(stringField(req.Ticket, field)) == "" {
			abortError(c, http.StatusBadRequest, "validation_error", field+" required")
			return
		}
	}
	if !sameOrg(c, org, req.Ticket["organizeId"]) {
		return
	}

	in := TicketInput{
		Identify: IdentifyInput{
			Key:      req.Key,
			Customer: req.Customers,
			Cookie:   stringField(req.Tracking, "cx_cookie"),
		},
		Fields:  req.Ticket,
		Lead:    req.Lead,
		Customs: decodeCustoms(req.Customs),
	}
	ticket, err := h.store.OpenTicket(c.Request.Context(), org, in)
	if err != nil {
		h.internalError(c, "open ticket", err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *handlers) createRecords(c *gin.Context) {
	org := OrganizationID(c)
	object := c.Param("name")
	if err := validation.ValidateObjectName(object); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var records []map[string]any
	if err := c.ShouldBindJSON(&records); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", "body must be a JSON array of records")
		return
	}

	created, err := h.store.CreateRecords(c.Request.Context(), org, object, records)
	if err != nil {
		h.internalError(c, "create records", err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (h *handlers) listEvents(c *gin.Context) {
	events, err := h.store.Events(c.Request.Context(), OrganizationID(c))
	if err != nil {
		h.internalError(c, "list events", err)
		return
	}
	if name := c.Query("name"); name != "" {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Name == name {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []Event{}
	}
	c.JSON(http.StatusOK, events)
}

func (h *handlers) listCustomers(c *gin.Context) {
	customers, err := h.store.Customers(c.Request.Context(), OrganizationID(c))
	if err != nil {
		h.internalError(c, "list customers", err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *handlers) getCustomer(c *gin.Context) {
	customer, err := h.store.Customer(c.Request.Context(), OrganizationID(c), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		abortError(c, http.StatusNotFound, "not_found", "customer not found")
		return
	}
	if err != nil {
		h.internalError(c, "get customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handlers) internalError(c *gin.Context, op string, err error) {
	h.log.Error().Err(err).Str("op", op).Msg("store failed")
	abortError(c, http.StatusInternalServerError, "internal_error", op+" failed")
}

// sameOrg rejects a payload whose organizeId names another organization
// than the token's. A missing organizeId is accepted.
func sameOrg(c *gin.Context, org string, claimed any) bool {
	s, _ := claimed.(string)
	if s == "" || s == org {
		return true
	}
	abortError(c, http.StatusForbidden, "forbidden", "organizeId does not match token")
	return false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
