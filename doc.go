// Package x402 implements the x402 HTTP payment-challenge protocol for a
// resource server that attests its own payments: unauthenticated requests
// receive HTTP 402 with machine-readable payment requirements, the caller
// settles an ERC-20 transfer on-chain and retries with an X-PAYMENT proof
// header, and the server verifies the proof, releases the resource, and can
// credit an external ledger account.
//
// The server-side challenge is stateless: the expected requirement is
// re-derived on every request rather than stored, so there is no replay
// protection. Proof verification is demo-grade field matching, not a
// cryptographic check. On the caller side the settlement pipeline is a
// single attempt with no idempotency key; a caller that resubmits after a
// network blip will pay twice. Deployments that need stronger guarantees
// must persist issued requirements keyed by a nonce and deduplicate
// transaction ids themselves.
package x402
