package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/xdg"
	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/publisher"
)

// resolveKey returns the signing key from --key or SWARM_PRIVATE_KEY.
// Keys are never read from or written to the config file.
func resolveKey(cmd *cobra.Command) (string, error) {
	key, _ := cmd.Flags().GetString("key")
	if strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), nil
	}
	if env := strings.TrimSpace(os.Getenv("SWARM_PRIVATE_KEY")); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no signing key: pass --key or set SWARM_PRIVATE_KEY")
}

// openLedger builds the IPFS ledger client from the config.
func openLedger(cfg xdg.Config) *ledger.IPFS {
	return ledger.NewIPFS(cfg.IPFSAPI)
}

// openPublisher builds the fail-closed publication pipeline.
func openPublisher(cfg xdg.Config) *publisher.Publisher {
	return publisher.New(openLedger(cfg))
}

// cmdContext bounds every network operation a command performs.
func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// coordinatorURL resolves the coordinator endpoint from config, with a
// localhost default.
func coordinatorURL(cfg xdg.Config) string {
	if strings.TrimSpace(cfg.Coordinator) != "" {
		return strings.TrimRight(cfg.Coordinator, "/")
	}
	return "http://localhost:8080"
}

// postCoordinator sends a POST to the coordinator and decodes the reply.
// Error replies surface the coordinator's error message.
func postCoordinator(ctx context.Context, cfg xdg.Config, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, coordinatorURL(cfg)+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doCoordinator(req, dst)
}

// getCoordinator sends a GET to the coordinator and decodes the reply.
func getCoordinator(ctx context.Context, cfg xdg.Config, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coordinatorURL(cfg)+path, nil)
	if err != nil {
		return err
	}
	return doCoordinator(req, dst)
}

func doCoordinator(req *http.Request, dst any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching coordinator: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error.Code != "" {
			return fmt.Errorf("coordinator: %s: %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("coordinator: %s", resp.Status)
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
