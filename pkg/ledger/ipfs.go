package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
)

// DefaultAPIURL is the local Kubo RPC endpoint.
const DefaultAPIURL = "http://localhost:5001/api/v0"

// IPFS implements Ledger over the Kubo HTTP API. Records are added
// pinned, then copied to their canonical MFS path so they are listable by
// kind.
type IPFS struct {
	apiURL string
	client *http.Client
}

// NewIPFS builds a client for the given API URL (DefaultAPIURL if empty).
func NewIPFS(apiURL string) *IPFS {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &IPFS{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// InitDirectories creates the canonical directory layout. Safe to call
// repeatedly.
func (f *IPFS) InitDirectories(ctx context.Context) error {
	for _, dir := range []string{Root, GenesisRoot, JobsRoot, ClaimsRoot, ProofsRoot, EpochsRoot, WithdrawalsRoot, IndexRoot} {
		q := url.Values{"arg": {dir}, "parents": {"true"}}
		if _, err := f.post(ctx, "/files/mkdir", q, nil, ""); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

func (f *IPFS) Publish(ctx context.Context, path string, record any) (string, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "record.json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(body); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := f.post(ctx, "/add", url.Values{"pin": {"true"}}, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	var added struct {
		Hash string `json:"Hash"`
	}
	if err := json.Unmarshal(resp, &added); err != nil {
		return "", fmt.Errorf("decoding add response: %w", err)
	}
	if _, err := cid.Decode(added.Hash); err != nil {
		return "", fmt.Errorf("storage returned invalid content id %q: %w", added.Hash, err)
	}

	// Copy to the canonical path; the content id stays authoritative.
	q := url.Values{"arg": {"/ipfs/" + added.Hash, path}}
	if _, err := f.post(ctx, "/files/cp", q, nil, ""); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return added.Hash, nil
}

func (f *IPFS) Fetch(ctx context.Context, id string, dst any) error {
	if _, err := cid.Decode(id); err != nil {
		return fmt.Errorf("invalid content id %q: %w", id, err)
	}
	resp, err := f.post(ctx, "/cat", url.Values{"arg": {id}}, nil, "")
	if err != nil {
		return err
	}
	return json.Unmarshal(resp, dst)
}

func (f *IPFS) Broadcast(ctx context.Context, topic string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	q := url.Values{"arg": {topic}}
	_, err = f.post(ctx, "/pubsub/pub", q, bytes.NewReader(body), "application/octet-stream")
	return err
}

func (f *IPFS) PollState(ctx context.Context) (PoolState, error) {
	resp, err := f.post(ctx, "/files/read", url.Values{"arg": {IndexRoot + "/state.json"}}, nil, "")
	if err != nil {
		return PoolState{}, err
	}
	var state PoolState
	if err := json.Unmarshal(resp, &state); err != nil {
		return PoolState{}, fmt.Errorf("decoding pool state: %w", err)
	}
	return state, nil
}

func (f *IPFS) post(ctx context.Context, endpoint string, q url.Values, body io.Reader, contentType string) ([]byte, error) {
	u := f.apiURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(out)))
	}
	return out, nil
}
