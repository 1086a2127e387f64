package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/usecase"
)

// CombineRequest is the body of POST /craft/combine. ChatInstance defaults
// to the one the token was issued for.
type CombineRequest struct {
	ChatInstance string `json:"chat_instance"`
	ElementAID   int64  `json:"element_a_id" binding:"required"`
	ElementBID   int64  `json:"element_b_id" binding:"required"`
}

// ElementList wraps a list of elements.
type ElementList struct {
	Items []domain.Element `json:"items"`
}

func identity(c *gin.Context) (middleware.Identity, bool) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthFailed, "authentication required"))
	}
	return id, ok
}

func chatInstance(requested string, id middleware.Identity) string {
	if requested != "" {
		return requested
	}
	return id.ChatInstance
}

// Combine handles POST /api/v1/craft/combine.
func (s *Server) Combine(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req CombineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidCombinationf("element_a_id and element_b_id are required"))
		return
	}

	resp, err := s.combineUC.Execute(c.Request.Context(), usecase.CombineInput{
		UserID:       id.UserID,
		ChatInstance: chatInstance(req.ChatInstance, id),
		ElementAID:   req.ElementAID,
		ElementBID:   req.ElementBID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListElements handles GET /api/v1/craft/elements.
func (s *Server) ListElements(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var requested string
	if err := runtime.BindQueryParameter("form", true, false, "chat_instance", c.Request.URL.Query(), &requested); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "chat_instance is invalid"))
		return
	}
	instance := chatInstance(requested, id)
	if instance == "" {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "chat_instance is required"))
		return
	}

	var items []domain.Element
	err := s.inScope(c, func(ctx context.Context) error {
		var err error
		items, err = bus.Call[[]domain.Element](ctx, s.bus, bus.NewEvent(domain.TopicProgressList,
			bus.Record(domain.ProgressListPayload{UserID: id.UserID, ChatInstance: instance})), s.requestTimeout)
		return err
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if items == nil {
		items = []domain.Element{}
	}
	c.JSON(http.StatusOK, ElementList{Items: items})
}

// GetElement handles GET /api/v1/craft/elements/:id.
func (s *Server) GetElement(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	var elementID int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &elementID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || elementID <= 0 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "element id must be a positive integer"))
		return
	}

	var found []domain.Element
	err = s.inScope(c, func(ctx context.Context) error {
		var err error
		found, err = bus.Call[[]domain.Element](ctx, s.bus, bus.NewEvent(domain.TopicElementFetch,
			bus.Record(domain.ElementFetchPayload{IDs: []int64{elementID}})), s.requestTimeout)
		return err
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, found[0])
}
