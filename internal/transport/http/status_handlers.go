package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusHandlers serves the read-only status endpoints.
type StatusHandlers struct {
	deps Deps
	log  *zerolog.Logger
}

// NewStatusHandlers creates a new status handlers instance.
func NewStatusHandlers(deps Deps, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{deps: deps, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse describes the connection and its transfers.
type StatusResponse struct {
	Mode                     string             `json:"mode"`
	State                    string             `json:"state"`
	ReconnectionCount        int                `json:"reconnection_count"`
	ReconnectionDelaySeconds float64            `json:"reconnection_delay_seconds"`
	Rooms                    []string           `json:"rooms"`
	ActiveTransfers          []ActiveTransferResponse `json:"active_transfers"`
}

// ActiveTransferResponse describes a stream still in flight. Only fields
// fixed at creation are reported; progress belongs to the stream's owner.
type ActiveTransferResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	Size       int64  `json:"size"`
	StreamType string `json:"stream_type,omitempty"`
}

// TransferResponse is a live stream or a recorded transfer.
type TransferResponse struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Name        string `json:"name,omitempty"`
	Size        int64  `json:"size"`
	Transferred int64  `json:"transferred"`
	StreamType  string `json:"stream_type,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// HistoryResponse lists a user's recent commands, oldest first.
type HistoryResponse struct {
	User     string   `json:"user"`
	Commands []string `json:"commands"`
}

// Health handles liveness probes.
// GET /health
func (h *StatusHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Status reports the connection state.
// GET /status
func (h *StatusHandlers) Status(c *gin.Context) {
	if h.deps.Bot == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "backend not configured"})
		return
	}

	st := h.deps.Bot.Status()
	resp := StatusResponse{
		Mode:                     h.deps.Bot.Mode(),
		State:                    st.State.String(),
		ReconnectionCount:        st.ReconnectionCount,
		ReconnectionDelaySeconds: st.ReconnectionDelay.Seconds(),
		Rooms:                    roomNames(h.deps.Bot.Rooms()),
		ActiveTransfers:          []ActiveTransferResponse{},
	}
	if h.deps.Transfers != nil {
		for _, id := range h.deps.Transfers.Active() {
			if s, ok := h.deps.Transfers.Get(id); ok {
				resp.ActiveTransfers = append(resp.ActiveTransfers, transferFromStream(s))
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Transfers lists recorded transfers for a peer.
// GET /transfers?identifier=alice&limit=20
func (h *StatusHandlers) Transfers(c *gin.Context) {
	if h.deps.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "transfer ledger not configured"})
		return
	}

	identifier := c.Query("identifier")
	if identifier == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "identifier is required"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.deps.Ledger.ListTransfers(c.Request.Context(), identifier, limit)
	if err != nil {
		h.log.Error().Err(err).Str("identifier", identifier).Msg("failed to list transfers")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]TransferResponse, 0, len(records))
	for _, r := range records {
		out = append(out, transferFromRecord(r))
	}
	c.JSON(http.StatusOK, out)
}

// History returns a user's command history.
// GET /history/:user
func (h *StatusHandlers) History(c *gin.Context) {
	if h.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history not configured"})
		return
	}
	user := c.Param("user")
	cmds := h.deps.History.Entries(user)
	if cmds == nil {
		cmds = []string{}
	}
	c.JSON(http.StatusOK, HistoryResponse{User: user, Commands: cmds})
}
