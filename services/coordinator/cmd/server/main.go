package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SudoSuOps/swarmpool/pkg/db"
	"github.com/SudoSuOps/swarmpool/pkg/httpx"
	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/publisher"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/settle"
	"github.com/SudoSuOps/swarmpool/pkg/signature"
	"github.com/SudoSuOps/swarmpool/services/coordinator/internal/epochsvc"
	"github.com/SudoSuOps/swarmpool/services/coordinator/internal/store"

	epochpkg "github.com/SudoSuOps/swarmpool/pkg/epoch"
)

func main() {
	pool := db.MustConnect()
	st := store.New(pool)
	if err := st.Migrate(context.Background()); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	controller := os.Getenv("SWARM_CONTROLLER_ENS")
	if controller == "" {
		controller = "swarmpool.eth"
	}
	privateKey := os.Getenv("SWARM_PRIVATE_KEY")
	if privateKey == "" {
		log.Fatal("SWARM_PRIVATE_KEY is required")
	}
	controllerWallet, err := signature.AddressOf(privateKey)
	if err != nil {
		log.Fatalf("controller key: %v", err)
	}

	led := ledger.NewIPFS(os.Getenv("SWARM_IPFS_API"))
	if err := led.InitDirectories(context.Background()); err != nil {
		log.Printf("ledger init: %v (continuing; publishes will retry)", err)
	}
	pub := publisher.New(led)
	mgr := epochpkg.NewManager(controller, privateKey, settle.DefaultConfig())
	svc := epochsvc.New(st, mgr, pub)

	port := os.Getenv("SERVICE_PORT")
	if port == "" {
		port = "8080"
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Gate-only check: returns the full violation list, touches nothing.
	r.Post("/records/{kind}/validate", func(w http.ResponseWriter, r *http.Request) {
		kind, err := schema.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			httpx.WriteError(w, 404, httpx.CodeNotFound, err.Error(), nil)
			return
		}
		var doc map[string]any
		if err := httpx.ReadJSON(r, &doc); err != nil {
			httpx.WriteError(w, 400, httpx.CodeBadJSON, err.Error(), nil)
			return
		}
		res := schema.Validate(doc, kind)
		httpx.WriteJSON(w, 200, map[string]any{
			"request_id": httpx.NewRequestID(),
			"valid":      res.Valid,
			"errors":     res.Errors,
		})
	})

	// Accept a signed record: gate, verify the signature against the
	// expected signer, publish to the ledger, archive. Fail-closed on
	// every step.
	r.Post("/records/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind, err := schema.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			httpx.WriteError(w, 404, httpx.CodeNotFound, err.Error(), nil)
			return
		}
		var doc map[string]any
		if err := httpx.ReadJSON(r, &doc); err != nil {
			httpx.WriteError(w, 400, httpx.CodeBadJSON, err.Error(), nil)
			return
		}
		if res := schema.Validate(doc, kind); !res.Valid {
			httpx.WriteError(w, 422, httpx.CodeSchemaViolation, "record failed validation", res.Errors)
			return
		}

		provider, _ := doc["provider"].(string)
		if err := verifySigner(r.Context(), st, kind, doc, provider, controllerWallet); err != nil {
			status, code := 401, httpx.CodeSignatureMismatch
			if errors.Is(err, errUnregistered) {
				status, code = 412, httpx.CodePreconditionFailed
			}
			httpx.WriteError(w, status, code, err.Error(), nil)
			return
		}

		recordID, jobID := recordIdentity(kind, doc)
		if recordID == "" {
			httpx.WriteError(w, 422, httpx.CodeSchemaViolation, "record id field is empty", nil)
			return
		}
		contentID, err := pub.PublishSigned(r.Context(), kind, pathFor(kind, recordID), doc)
		if err != nil {
			httpx.WriteError(w, 502, httpx.CodeDBError, err.Error(), nil)
			return
		}
		body, _ := json.Marshal(doc)
		if err := st.SaveSnapshot(r.Context(), recordID, string(kind), provider, jobID, contentID, body); err != nil {
			httpx.WriteError(w, 500, httpx.CodeDBError, err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, 201, map[string]any{
			"request_id": httpx.NewRequestID(),
			"record_id":  recordID,
			"content_id": contentID,
		})
	})

	r.Get("/records/{record_id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := st.GetSnapshot(r.Context(), chi.URLParam(r, "record_id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, 404, httpx.CodeNotFound, err.Error(), nil)
				return
			}
			httpx.WriteError(w, 500, httpx.CodeDBError, err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "record": snap})
	})

	r.Post("/epochs/open", func(w http.ResponseWriter, r *http.Request) {
		ep, err := svc.OpenNext(r.Context(), time.Now().UTC())
		if err != nil {
			httpx.WriteError(w, 500, httpx.CodeDBError, err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "epoch": ep})
	})

	r.Post("/epochs/{epoch_id}/seal", func(w http.ResponseWriter, r *http.Request) {
		sealed, err := svc.Seal(r.Context(), chi.URLParam(r, "epoch_id"), time.Now().UTC())
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				httpx.WriteError(w, 404, httpx.CodeNotFound, err.Error(), nil)
			case errors.Is(err, epochpkg.ErrNotActive), errors.Is(err, settle.ErrNoProofs), errors.Is(err, epochsvc.ErrMissingClaim):
				httpx.WriteError(w, 412, httpx.CodePreconditionFailed, err.Error(), nil)
			case errors.Is(err, settle.ErrInvariantViolation):
				httpx.WriteError(w, 500, httpx.CodeInvariantViolation, err.Error(), nil)
			default:
				httpx.WriteError(w, 500, httpx.CodeDBError, err.Error(), nil)
			}
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "epoch": sealed})
	})

	r.Get("/epochs", func(w http.ResponseWriter, r *http.Request) {
		epochs, err := st.ListEpochs(r.Context())
		if err != nil {
			httpx.WriteError(w, 500, httpx.CodeDBError, err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "epochs": epochs})
	})

	r.Get("/epochs/{epoch_id}", func(w http.ResponseWriter, r *http.Request) {
		row, err := st.GetEpoch(r.Context(), chi.URLParam(r, "epoch_id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, 404, httpx.CodeNotFound, err.Error(), nil)
				return
			}
			httpx.WriteError(w, 500, httpx.CodeDBError, err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "epoch": row})
	})

	log.Printf("coordinator %s (%s) listening on :%s", controller, controllerWallet, port)
	http.ListenAndServe(":"+port, r)
}

var errUnregistered = errors.New("provider has no genesis registration")

// verifySigner enforces who may sign what. A genesis record must be
// signed by the wallet it declares; claims, proofs, and withdrawals by
// the provider's registered genesis wallet; epochs only by the
// controller. Jobs need a recoverable signature from any wallet since
// clients have no registration.
func verifySigner(ctx context.Context, st *store.Store, kind schema.Kind, doc map[string]any, provider, controllerWallet string) error {
	switch kind {
	case schema.KindGenesis:
		wallet, _ := doc["wallet"].(string)
		return signature.VerifyDocument(doc, wallet)
	case schema.KindClaim, schema.KindProof, schema.KindWithdrawal:
		wallet, err := st.WalletFor(ctx, provider)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errUnregistered
			}
			return err
		}
		return signature.VerifyDocument(doc, wallet)
	case schema.KindEpoch:
		return signature.VerifyDocument(doc, controllerWallet)
	default:
		_, err := signature.RecoverDocument(doc)
		return err
	}
}

// recordIdentity extracts a record's id and, where present, the job it
// belongs to.
func recordIdentity(kind schema.Kind, doc map[string]any) (recordID, jobID string) {
	str := func(key string) string {
		s, _ := doc[key].(string)
		return strings.TrimSpace(s)
	}
	jobID = str("job_id")
	switch kind {
	case schema.KindGenesis:
		return str("provider"), ""
	case schema.KindJob:
		return jobID, jobID
	case schema.KindClaim:
		return str("claim_id"), jobID
	case schema.KindProof:
		return str("proof_id"), jobID
	case schema.KindEpoch:
		return str("epoch_id"), ""
	case schema.KindWithdrawal:
		return str("withdrawal_id"), ""
	}
	return "", ""
}

func pathFor(kind schema.Kind, recordID string) string {
	switch kind {
	case schema.KindGenesis:
		return ledger.GenesisPath(recordID)
	case schema.KindJob:
		return ledger.JobPath(recordID)
	case schema.KindClaim:
		return ledger.ClaimPath(recordID)
	case schema.KindProof:
		return ledger.ProofPath(recordID)
	case schema.KindWithdrawal:
		return ledger.WithdrawalPath(recordID)
	default:
		return ledger.EpochPath(recordID)
	}
}
