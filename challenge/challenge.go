// Package challenge builds the standardized "payment required" document an
// agent returns when a request carries no proof or a proof that failed
// verification. Building a challenge is pure; no I/O happens here.
package challenge

import (
	"github.com/payward-labs/agentgate/types"
)

const (
	defaultScheme   = "exact"
	defaultMimeType = "application/json"
)

// Builder constructs challenge documents for one agent's pricing policy.
type Builder struct {
	policy *types.PricingPolicy

	// asset is the mint contract address advertised to payers, when the paid
	// action is a contract call rather than a plain transfer.
	asset string
}

// NewBuilder creates a challenge builder. asset may be empty for agents paid
// by plain value transfer.
func NewBuilder(policy *types.PricingPolicy, asset string) *Builder {
	return &Builder{policy: policy, asset: asset}
}

// Build constructs a fresh challenge for a resource. referrer and verr are
// optional; a prior verification failure is surfaced only in the ext field,
// never in place of the mandatory payment fields.
func (b *Builder) Build(resource, description, referrer string, verr *types.VerificationResult) *types.ChallengeDocument {
	terms := types.PaymentTerms{
		Scheme:            defaultScheme,
		Network:           b.policy.Network,
		Currency:          b.policy.Currency,
		MaxAmountRequired: b.policy.UnitPrice.String(),
		Resource:          types.ResourceWithAddress(resource, b.policy.PayTo),
		Description:       description,
		MimeType:          defaultMimeType,
		PayTo:             b.policy.PayTo,
		Asset:             b.asset,
	}

	doc := &types.ChallengeDocument{
		Version: types.ProtocolVersion,
		Accepts: []types.PaymentTerms{terms},
	}

	var ext *types.TermsExt
	if referrer != "" {
		ext = &types.TermsExt{Referrer: referrer}
	}
	if verr != nil && !verr.Valid {
		if ext == nil {
			ext = &types.TermsExt{}
		}
		ext.Error = verr.Kind.String()
		ext.ErrorDetails = verr.Detail
		doc.Error = verr.Kind.String()
	}
	if ext != nil {
		doc.Accepts[0].Ext = ext
	}

	return doc
}
