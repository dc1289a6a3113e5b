package httpgate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payward-labs/agentgate/relay"
	"github.com/payward-labs/agentgate/types"
)

// Relayer is the chained-invocation surface a relaying handler drives.
// Satisfied by *relay.Client.
type Relayer interface {
	Invoke(ctx context.Context, inv *relay.Invocation) (*relay.Result, error)
}

// AgentCardHandler serves the capability discovery document.
func AgentCardHandler(card *types.AgentCard) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, card)
	}
}

type promptRequest struct {
	Topic string `json:"topic" binding:"required"`
	Style string `json:"style"`
	Extra string `json:"extra"`

	// Beneficiary is ignored by the prompt agent itself; it is present so
	// relayed second calls bind cleanly.
	Beneficiary string `json:"beneficiary"`
}

// PromptHandler answers the prompt-synthesis capability. Payment has already
// been enforced by the gate when the route is priced.
func PromptHandler(gen types.PromptGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req promptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
		text, err := gen.GeneratePrompt(c.Request.Context(), req.Topic, req.Style, req.Extra)
		if err != nil {
			Error(c, http.StatusInternalServerError, "prompt generation failed")
			return
		}
		Success(c, gin.H{"text": text})
	}
}

type imageRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	Beneficiary string `json:"beneficiary"`
}

// ImageHandler answers the image-generation capability.
func ImageHandler(gen types.ImageGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req imageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
		url, err := gen.GenerateImage(c.Request.Context(), req.Prompt)
		if err != nil {
			Error(c, http.StatusInternalServerError, "image generation failed")
			return
		}
		Success(c, gin.H{"url": url})
	}
}

type relayedImageRequest struct {
	Topic string `json:"topic" binding:"required"`
	Style string `json:"style"`

	// Beneficiary is honored only for free routes; on priced routes the
	// verified payer always wins, so a payer cannot mint rewards to someone
	// else by editing the body.
	Beneficiary string `json:"beneficiary"`
}

// RelayedImageHandler chains two agents: it pays a downstream prompt agent on
// the caller's behalf, then renders the returned prompt into an image. The
// reward beneficiary is this agent's own verified payer, not the relay's
// signing key.
func RelayedImageHandler(relayer Relayer, promptEndpoint string, gen types.ImageGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req relayedImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}

		beneficiary := req.Beneficiary
		if payer, ok := Payer(c); ok {
			beneficiary = payer
		}

		res, err := relayer.Invoke(c.Request.Context(), &relay.Invocation{
			Endpoint:    promptEndpoint,
			Payload:     map[string]any{"topic": req.Topic, "style": req.Style},
			Beneficiary: beneficiary,
			Referrer:    c.Query(referrerParam),
		})
		if err != nil {
			writeRelayError(c, err)
			return
		}

		var prompt struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(res.Data, &prompt); err != nil || prompt.Text == "" {
			Error(c, http.StatusBadGateway, "downstream agent returned an unusable prompt")
			return
		}

		url, err := gen.GenerateImage(c.Request.Context(), prompt.Text)
		if err != nil {
			Error(c, http.StatusInternalServerError, "image generation failed")
			return
		}
		Success(c, gin.H{"url": url, "prompt": prompt.Text, "paymentTx": res.PaymentTx})
	}
}

// writeRelayError maps relay failures onto the envelope. A downstream 402
// stays an opaque upstream failure here; the caller already paid this agent
// and must never be shown a second bill.
func writeRelayError(c *gin.Context, err error) {
	var gateErr *types.GateError
	if !errors.As(err, &gateErr) {
		Error(c, http.StatusBadGateway, "downstream invocation failed")
		return
	}
	switch gateErr.Kind {
	case types.ErrMissingBeneficiary:
		Error(c, http.StatusBadRequest, gateErr.Message)
	case types.ErrUnreachable:
		Error(c, http.StatusBadGateway, "downstream agent unreachable")
	default:
		Error(c, http.StatusBadGateway, "downstream payment could not be completed")
	}
}
