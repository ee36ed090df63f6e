// Package publisher runs the fail-closed publication pipeline: a record
// is gated against its schema, signed, and only then handed to the
// storage layer. Any validation failure blocks publication outright;
// there is no partial or best-effort path.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/signature"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

// ErrGateRejected reports a record the schema gate refused. The full
// violation list is attached.
var ErrGateRejected = errors.New("schema validation failed")

// Publisher binds the gate and signer to a storage collaborator.
type Publisher struct {
	Ledger ledger.Ledger
}

// New builds a publisher over the given ledger.
func New(l ledger.Ledger) *Publisher {
	return &Publisher{Ledger: l}
}

// Publish validates rec against its schema kind, signs it with the
// caller's key, stores the signed document at path, and returns its
// content id together with the signed document.
func (p *Publisher) Publish(ctx context.Context, kind schema.Kind, path string, rec any, privateKeyHex string) (string, map[string]any, error) {
	doc, err := snapshot.Document(rec)
	if err != nil {
		return "", nil, err
	}
	if res := schema.Validate(doc, kind); !res.Valid {
		return "", nil, fmt.Errorf("%w: %s", ErrGateRejected, strings.Join(res.Errors, "; "))
	}
	sig, err := signature.SignDocument(doc, privateKeyHex)
	if err != nil {
		return "", nil, err
	}
	doc["sig"] = sig

	id, err := p.Ledger.Publish(ctx, path, doc)
	if err != nil {
		return "", nil, err
	}
	return id, doc, nil
}

// PublishSigned stores an already-signed document after re-running the
// gate and checking the signature shape. Used when relaying records
// signed elsewhere.
func (p *Publisher) PublishSigned(ctx context.Context, kind schema.Kind, path string, doc map[string]any) (string, error) {
	if res := schema.Validate(doc, kind); !res.Valid {
		return "", fmt.Errorf("%w: %s", ErrGateRejected, strings.Join(res.Errors, "; "))
	}
	sig, _ := doc["sig"].(string)
	if strings.TrimSpace(sig) == "" {
		return "", fmt.Errorf("%w: field %q is required before publish", ErrGateRejected, "sig")
	}
	return p.Ledger.Publish(ctx, path, doc)
}
