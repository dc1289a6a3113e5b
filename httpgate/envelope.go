// Package httpgate provides the gin-facing surface of a payment-gated agent:
// the payment middleware, the uniform response envelope, the agent-card
// discovery handler and the reference capability handlers.
package httpgate

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payward-labs/agentgate/types"
)

// Success writes a 200 envelope with the capability payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, types.Envelope{Code: http.StatusOK, Msg: "success", Data: data})
}

// Error writes an error envelope and aborts the handler chain. The envelope
// code mirrors the HTTP status so legacy clients reading only the body agree
// with clients reading the status line.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, types.Envelope{Code: status, Msg: msg})
}

// Challenge writes a 402 with the challenge document as the bare body, not
// wrapped in the envelope: relays parse the document shape directly.
func Challenge(c *gin.Context, doc *types.ChallengeDocument) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, doc)
}
