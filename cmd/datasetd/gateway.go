package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
)

// httpBlockSource is a blockstore.Source backed by a plain HTTP content
// gateway: GET {base}/{cid} to fetch a block, POST {base} with the encoded
// bytes to write one. It owns no CID verification of its own; blockstore.Client does that.
type httpBlockSource struct {
	base string
	hc   *http.Client
}

func newHTTPBlockSource(base string) *httpBlockSource {
	return &httpBlockSource{base: base, hc: &http.Client{Timeout: 30 * time.Second}}
}

func (s *httpBlockSource) BlockGet(ctx context.Context, c dagcid.Cid) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/"+c.String(), nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("gateway: GET %s: unexpected status %s", c, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Ping is a lightweight reachability probe against the gateway, used at
// startup to decide whether write capabilities can be enabled (spec §7:
// "failure to reach the write API downgrades capabilities ... but is not
// fatal"). Any response at all, including a 4xx the gateway returns for a
// bare HEAD, counts as reachable; only a transport failure or a 5xx does
// not.
func (s *httpBlockSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.base, nil)
	if err != nil {
		return err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway: HEAD %s: unexpected status %s", s.base, resp.Status)
	}
	return nil
}

func (s *httpBlockSource) BlockPut(ctx context.Context, encoded []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway: POST: unexpected status %s", resp.Status)
	}
	return nil
}

// httpPinner is a blockstore.Pinner backed by a separate pin-service HTTP
// endpoint, independent of the block gateway (spec §4.5: the pin side
// channel has its own transport and failure domain).
type httpPinner struct {
	base string
	hc   *http.Client
}

func newHTTPPinner(base string) *httpPinner {
	return &httpPinner{base: base, hc: &http.Client{Timeout: 30 * time.Second}}
}

// Ping is httpBlockSource.Ping's counterpart for the separate pin-service
// endpoint: a reachable write API for put does not imply a reachable one
// for pin, since spec deployments may point them at different services.
func (p *httpPinner) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.base, nil)
	if err != nil {
		return err
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("pin service: HEAD %s: unexpected status %s", p.base, resp.Status)
	}
	return nil
}

func (p *httpPinner) Pin(ctx context.Context, c dagcid.Cid) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/pins/"+c.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("pin service: unexpected status %s", resp.Status)
	}
	return nil
}
