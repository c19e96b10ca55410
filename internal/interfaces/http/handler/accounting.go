package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appaccounting "github.com/Smashkat12/crechebooks-sub003/internal/application/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/interfaces/http/dto"
)

// AccountingHandler exposes the accounting synchronization API: the OAuth
// connection lifecycle, entity push/pull, bulk sync, and journal posting.
type AccountingHandler struct {
	BaseHandler
	service      *appaccounting.SyncService
	orchestrator *appaccounting.Orchestrator
	logger       *zap.Logger
}

// NewAccountingHandler creates the accounting handler.
func NewAccountingHandler(service *appaccounting.SyncService, orchestrator *appaccounting.Orchestrator, logger *zap.Logger) *AccountingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountingHandler{
		service:      service,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes registers accounting routes on the given group.
func (h *AccountingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/accounting")
	{
		group.GET("/capabilities", h.GetCapabilities)
		group.POST("/connect", h.Connect)
		group.GET("/callback", h.Callback)
		group.GET("/status", h.GetStatus)
		group.DELETE("/connection", h.Disconnect)
		group.POST("/push", h.Push)
		group.POST("/pull", h.Pull)
		group.POST("/sync/bulk", h.BulkSync)
		group.POST("/sync", h.Sync)
		group.POST("/journals", h.PostJournal)
	}
}

// GetCapabilities reports what the configured provider supports.
func (h *AccountingHandler) GetCapabilities(c *gin.Context) {
	h.Success(c, h.service.GetCapabilities())
}

// Connect starts the OAuth handshake and returns the provider consent URL.
func (h *AccountingHandler) Connect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	var req dto.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	authorizeURL, err := h.service.Connect(c.Request.Context(), tenantID, req.ReturnURL)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.ConnectResponse{AuthorizeURL: authorizeURL})
}

// Callback completes the OAuth handshake. The provider redirects the user's
// browser here; the tenant identity travels inside the encrypted state
// parameter, not a bearer token. When the flow was started with a return
// URL the user is sent back there, otherwise the connection status is
// returned as JSON.
func (h *AccountingHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" {
		h.BadRequest(c, "Missing state parameter")
		return
	}
	if errParam := c.Query("error"); errParam != "" {
		// The user declined consent at the provider.
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Provider authorization was denied: "+errParam)
		return
	}

	status, returnURL, err := h.service.HandleCallback(c.Request.Context(), state, code)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if returnURL != "" {
		c.Redirect(http.StatusFound, returnURL)
		return
	}
	h.Success(c, dto.CallbackResponse{Status: status})
}

// GetStatus reports the tenant's connection state.
func (h *AccountingHandler) GetStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	status, err := h.service.GetConnectionStatus(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, status)
}

// Disconnect removes the tenant's provider authorization. Sync mappings are
// kept so a later reconnect resumes with the same external IDs.
func (h *AccountingHandler) Disconnect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), tenantID); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// Push sends a single entity to the provider.
func (h *AccountingHandler) Push(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	var req dto.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	kind, err := parseEntityKind(req.Kind)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	internalID, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid entity ID")
		return
	}

	mapping, outcome, err := h.service.PushEntity(c.Request.Context(), tenantID, kind, internalID, req.Force)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.PushResponse{
		Outcome: string(outcome),
		Mapping: dto.NewMappingResponse(mapping),
	})
}

// Pull imports provider-side changes for one entity kind.
func (h *AccountingHandler) Pull(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	var req dto.PullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	kind, err := parseEntityKind(req.Kind)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	result, err := h.service.PullEntity(c.Request.Context(), tenantID, kind, req.Since)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// BulkSync pushes many entities of one kind, tolerating per-entity failures.
func (h *AccountingHandler) BulkSync(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	var req dto.BulkSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	kind, err := parseEntityKind(req.Kind)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid entity ID "+raw)
			return
		}
		ids = append(ids, id)
	}

	result, err := h.service.SyncEntityBulk(c.Request.Context(), tenantID, kind, ids, req.Force)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// Sync runs a full orchestrated sync across entity kinds.
func (h *AccountingHandler) Sync(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.Sync(c.Request.Context(), tenantID, req.ToOptions())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// PostJournal posts a manual journal to the provider. The journal must
// balance in cents; imbalance is rejected before any provider call.
func (h *AccountingHandler) PostJournal(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant identity")
		return
	}

	var req dto.JournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	externalID, err := h.service.PostJournal(c.Request.Context(), tenantID, req.ToDomain())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, dto.JournalResponse{ExternalID: externalID})
}
