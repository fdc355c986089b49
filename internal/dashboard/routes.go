package dashboard

import (
	"errors"
	"net/http"

	"github.com/crosswire/intercom/internal/console"
	"github.com/crosswire/intercom/internal/protocol"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, con Console, history History) {
	api := router.Group("/api")
	api.GET("/state", handleState(con))
	api.GET("/events", handleSSE(con))
	api.GET("/history", handleHistory(history))

	api.POST("/calls", handleOriginate(con))
	api.POST("/calls/accept", handleAccept(con))
	api.POST("/calls/end", handleEnd(con))
	api.POST("/calls/dismiss", handleDismiss(con))
	api.POST("/position", handleChoosePosition(con))
	api.POST("/station", handleTemporaryStation(con))
}

func handleState(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, con.Snapshot())
	}
}

func handleHistory(history History) gin.HandlerFunc {
	return func(c *gin.Context) {
		if history == nil {
			c.JSON(http.StatusOK, gin.H{"entries": []any{}})
			return
		}
		entries, err := history.Entries()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

type originateRequest struct {
	Client   protocol.ClientID   `json:"client"`
	Position protocol.PositionID `json:"position"`
	Station  protocol.StationID  `json:"station"`
	Priority bool                `json:"priority"`
}

func handleOriginate(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req originateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		target := protocol.CallTarget{
			Client:   req.Client,
			Position: req.Position,
			Station:  req.Station,
		}
		id, err := con.Originate(c.Request.Context(), target, req.Priority)
		if err != nil {
			c.JSON(actionStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"callId": id})
	}
}

type callIDRequest struct {
	CallID protocol.CallID `json:"callId"`
}

func handleAccept(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req callIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ok, err := con.Accept(c.Request.Context(), req.CallID)
		if err != nil {
			c.JSON(actionStatus(err), gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no matching incoming call"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accepted": true})
	}
}

func handleEnd(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := con.End(c.Request.Context())
		if err != nil {
			c.JSON(actionStatus(err), gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active call"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ended": true})
	}
}

func handleDismiss(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !con.Dismiss() {
			c.JSON(http.StatusNotFound, gin.H{"error": "nothing to dismiss"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"dismissed": true})
	}
}

type positionRequest struct {
	Position protocol.PositionID `json:"position"`
}

func handleChoosePosition(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req positionRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Position == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "position is required"})
			return
		}
		if err := con.ChoosePosition(req.Position); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"position": req.Position})
	}
}

type stationRequest struct {
	Station protocol.StationID `json:"station"`
}

func handleTemporaryStation(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		con.SetTemporaryStation(req.Station)
		c.JSON(http.StatusOK, gin.H{"station": req.Station})
	}
}

// actionStatus maps the call session's user-error taxonomy onto HTTP
// status codes.
func actionStatus(err error) int {
	switch {
	case errors.Is(err, console.ErrInvalidTarget), errors.Is(err, console.ErrSelfCall):
		return http.StatusBadRequest
	case errors.Is(err, console.ErrSlotOccupied), errors.Is(err, console.ErrActionInFlight),
		errors.Is(err, console.ErrNotAuthenticated):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
