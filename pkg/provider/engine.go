package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/seantis/ocitool/pkg/load"
)

// DefaultEngineHost is used if DOCKER_HOST is not set
const DefaultEngineHost = "unix:///var/run/docker.sock"

// the host part of request urls sent through a unix socket
const socketHost = "docker"

// EngineError is returned if the daemon rejects a request
type EngineError struct {
	StatusCode int
	Message    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine API returned %d: %s", e.StatusCode, e.Message)
}

// engineMessage is a line of a streamed response or the body of an error
type engineMessage struct {
	Stream  string `json:"stream"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EngineRuntime talks to a Docker compatible daemon through its HTTP API
type EngineRuntime struct {
	client   *http.Client
	endpoint string
	socket   string
}

func init() {
	engine, err := NewEngineRuntime(os.Getenv("DOCKER_HOST"))
	if err != nil {
		log.Debugf("engine runtime disabled: %v", err)
		return
	}

	load.RegisterRuntime("engine", engine)
}

// NewEngineRuntime returns a runtime for the daemon listening on the given
// host, which is either a unix socket ("unix:///var/run/docker.sock") or a
// tcp address ("tcp://127.0.0.1:2375")
func NewEngineRuntime(host string) (*EngineRuntime, error) {
	if len(host) == 0 {
		host = DefaultEngineHost
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid engine host %s: %w", host, err)
	}

	headers := map[string]string{
		"User-Agent": "ocitool",
	}

	switch u.Scheme {
	case "unix":
		socket := u.Path
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}

		return &EngineRuntime{
			client:   clientWithHeaders(transport, headers),
			endpoint: "http://" + socketHost,
			socket:   socket,
		}, nil
	case "tcp", "http":
		return &EngineRuntime{
			client:   clientWithHeaders(http.DefaultTransport, headers),
			endpoint: "http://" + u.Host,
		}, nil
	case "https":
		return &EngineRuntime{
			client:   clientWithHeaders(http.DefaultTransport, headers),
			endpoint: "https://" + u.Host,
		}, nil
	}

	return nil, fmt.Errorf("unsupported engine host %s", host)
}

// Available returns true if the socket exists. Daemons reached over the
// network are assumed to be available.
func (r *EngineRuntime) Available() bool {
	if len(r.socket) == 0 {
		return true
	}

	_, err := os.Stat(r.socket)
	return err == nil
}

// Load posts the archive to /images/load. The daemon reports failures
// inside the streamed response, even if the status code signals success.
func (r *EngineRuntime) Load(ctx context.Context, rd io.Reader) error {
	log.Infof("loading image into %s", r.endpoint)

	res, err := r.post(ctx, "/images/load", nil, "application/x-tar", rd)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	decoder := json.NewDecoder(res.Body)

	for {
		var msg engineMessage

		err := decoder.Decode(&msg)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("error reading response of %s: %w", r.endpoint, err)
		}

		if len(msg.Error) > 0 {
			return &EngineError{StatusCode: res.StatusCode, Message: msg.Error}
		}

		if stream := strings.TrimSpace(msg.Stream); len(stream) > 0 {
			log.Info(stream)
		}
	}
}

// Tag posts to /images/{source}/tag
func (r *EngineRuntime) Tag(ctx context.Context, source, target string) error {
	i := strings.LastIndex(target, ":")
	if i < 0 {
		return fmt.Errorf("missing tag in %s", target)
	}

	query := url.Values{}
	query.Set("repo", target[:i])
	query.Set("tag", target[i+1:])

	log.Infof("tagging %s as %s through %s", source, target, r.endpoint)

	res, err := r.post(ctx, "/images/"+url.PathEscape(source)+"/tag", query, "", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	_, err = io.Copy(io.Discard, res.Body)
	return err
}

// post sends a request and turns error responses into an EngineError
func (r *EngineRuntime) post(ctx context.Context, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	u := r.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, err
	}

	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s failed: %w", u, err)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}

	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("POST %s failed with %s", u, res.Status)
	}

	var msg engineMessage
	if err := json.Unmarshal(data, &msg); err != nil || len(msg.Message) == 0 {
		msg.Message = strings.TrimSpace(string(data))
	}

	return nil, &EngineError{StatusCode: res.StatusCode, Message: msg.Message}
}
