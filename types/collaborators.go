package types

import "context"

// ImageGenerator is the black-box image backend an image agent delegates to
// after payment clears.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (url string, err error)
}

// PromptGenerator is the black-box prompt-template backend a prompt agent
// delegates to after payment clears.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, topic, style, extra string) (text string, err error)
}

// SigningOracle signs a raw unsigned transaction when key custody is
// externalized. Input and output are RLP-encoded transaction bytes.
type SigningOracle interface {
	Sign(ctx context.Context, unsignedTx []byte) (signedTx []byte, err error)
}

// Broadcaster submits a signed raw transaction and returns its hash. Used
// together with SigningOracle in the split-custody deployment variant.
type Broadcaster interface {
	Broadcast(ctx context.Context, signedTx []byte) (txHash string, err error)
}
