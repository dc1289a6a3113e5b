package httpgate

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payward-labs/agentgate/types"
)

const (
	payTo = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
	payer = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
)

func testPolicy(price int64) *types.PricingPolicy {
	return &types.PricingPolicy{
		UnitPrice:   big.NewInt(price),
		MinAmount:   big.NewInt(price),
		Currency:    "ETH",
		Network:     "base-sepolia",
		PayTo:       payTo,
		RPCEndpoint: "http://localhost:8545",
	}
}

// scriptedVerifier returns a canned result, or an error simulating an
// unreachable chain.
type scriptedVerifier struct {
	result *types.VerificationResult
	err    error
	proofs []string
}

func (v *scriptedVerifier) Verify(_ context.Context, proof string, _ *types.PricingPolicy) (*types.VerificationResult, error) {
	v.proofs = append(v.proofs, proof)
	return v.result, v.err
}

func gatedRouter(t *testing.T, gate *Gate) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/task", gate.Middleware(), func(c *gin.Context) {
		p, _ := Payer(c)
		Success(c, gin.H{"payer": p})
	})
	return r
}

func doPost(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGateChallengesMissingProof(t *testing.T) {
	verifier := &scriptedVerifier{}
	gate := NewGate(verifier, testPolicy(50_000), "", "prompt synthesis")
	r := gatedRouter(t, gate)

	w := doPost(r, "/task?referrer=partner-7", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Empty(t, verifier.proofs, "no proof means nothing to verify")

	var doc types.ChallengeDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Accepts, 1)
	terms := doc.Accepts[0]
	assert.Equal(t, "50000", terms.MaxAmountRequired)
	assert.Equal(t, payTo, terms.PayTo)
	assert.Empty(t, doc.Error, "a first challenge carries no error")
	require.NotNil(t, terms.Ext)
	assert.Equal(t, "partner-7", terms.Ext.Referrer)
}

func TestGateChallengesRejectedProof(t *testing.T) {
	verifier := &scriptedVerifier{result: &types.VerificationResult{
		Valid:  false,
		Kind:   types.ErrProofReused,
		Detail: "proof already consumed",
	}}
	gate := NewGate(verifier, testPolicy(50_000), "", "prompt synthesis")
	r := gatedRouter(t, gate)

	w := doPost(r, "/task", map[string]string{types.ProofHeader: "c29tZXByb29m"})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var doc types.ChallengeDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "PROOF_REUSED", doc.Error)
	require.Len(t, doc.Accepts, 1)
	require.NotNil(t, doc.Accepts[0].Ext)
	assert.Equal(t, "PROOF_REUSED", doc.Accepts[0].Ext.Error)
	// The rejected challenge still carries everything needed to pay.
	assert.Equal(t, "50000", doc.Accepts[0].MaxAmountRequired)
}

func TestGateAdmitsValidProof(t *testing.T) {
	verifier := &scriptedVerifier{result: &types.VerificationResult{Valid: true, Payer: payer}}
	gate := NewGate(verifier, testPolicy(50_000), "", "prompt synthesis")
	r := gatedRouter(t, gate)

	w := doPost(r, "/task", map[string]string{types.ProofHeader: "c29tZXByb29m"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"c29tZXByb29m"}, verifier.proofs)

	var env types.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, http.StatusOK, env.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, payer, data["payer"])
}

func TestGateChainOutageIsNotAChallenge(t *testing.T) {
	verifier := &scriptedVerifier{err: errors.New("dial tcp: connection refused")}
	gate := NewGate(verifier, testPolicy(50_000), "", "prompt synthesis")
	r := gatedRouter(t, gate)

	w := doPost(r, "/task", map[string]string{types.ProofHeader: "c29tZXByb29m"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "accepts",
		"an outage must not demand payment for a proof that was never judged")
}

func TestGateSkipsFreeCapability(t *testing.T) {
	verifier := &scriptedVerifier{}
	gate := NewGate(verifier, testPolicy(0), "", "free prompt")
	r := gatedRouter(t, gate)

	w := doPost(r, "/task", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, verifier.proofs)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDKey))

	// A caller-supplied ID is preserved.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "trace-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(RequestIDKey))
}
