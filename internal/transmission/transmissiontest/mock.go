// Package transmissiontest provides a scriptable stand-in for the daemon's
// HTTP endpoint. Plans are queued per RPC method and played in order; the
// last plan for a method repeats once the queue is drained.
package transmissiontest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"

	"github.com/five82/remora/internal/jsonvalue"
)

// Plan is one scripted reply.
type Plan struct {
	Status  int
	Header  http.Header
	Body    []byte
	Err     error
	noReply bool
}

// Conflict answers 409 with a fresh session token.
func Conflict(token string) Plan {
	header := http.Header{}
	if token != "" {
		header.Set("X-Transmission-Session-Id", token)
	}
	return Plan{Status: http.StatusConflict, Header: header, Body: []byte("<h1>409: Conflict</h1>")}
}

// Success answers 200 with result "success" and args.
func Success(args jsonvalue.Value) Plan {
	return envelope("success", args)
}

// Failure answers 200 with a daemon-level error message.
func Failure(result string) Plan {
	return envelope(result, jsonvalue.Object(nil))
}

// Status answers with a bare HTTP status code.
func Status(code int) Plan {
	return Plan{Status: code}
}

// Body answers 200 with raw bytes.
func Body(raw string) Plan {
	return Plan{Status: http.StatusOK, Body: []byte(raw)}
}

// NetworkError fails the round trip with a refused connection.
func NetworkError() Plan {
	return Plan{Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
}

// Error fails the round trip with err.
func Error(err error) Plan {
	return Plan{Err: err}
}

func envelope(result string, args jsonvalue.Value) Plan {
	body := map[string]any{"result": result, "arguments": args}
	data, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("transmissiontest: marshal envelope: %v", err))
	}
	return Plan{Status: http.StatusOK, Body: data}
}

// Call records one request seen by the mock.
type Call struct {
	Method    string
	Header    http.Header
	Arguments jsonvalue.Value
	Body      []byte
}

// Server implements the transport Doer interface.
type Server struct {
	mu    sync.Mutex
	plans map[string][]Plan
	calls []Call

	requireToken string
}

func NewServer() *Server {
	return &Server{plans: make(map[string][]Plan)}
}

// On queues plans for method.
func (s *Server) On(method string, plans ...Plan) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[method] = append(s.plans[method], plans...)
	return s
}

// RequireSessionID behaves like the daemon's CSRF guard: a request without
// token gets a 409 carrying it.
func (s *Server) RequireSessionID(token string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireToken = token
	return s
}

// Calls returns every request seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := make([]Call, len(s.calls))
	copy(dup, s.calls)
	return dup
}

// CallsFor returns the requests seen for method.
func (s *Server) CallsFor(method string) []Call {
	var out []Call
	for _, call := range s.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Do implements the Doer interface.
func (s *Server) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	var data []byte
	if req.Body != nil {
		var err error
		data, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
	}
	var payload struct {
		Method    string          `json:"method"`
		Arguments jsonvalue.Value `json:"arguments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("transmissiontest: decode request: %w", err)
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method:    payload.Method,
		Header:    req.Header.Clone(),
		Arguments: payload.Arguments,
		Body:      data,
	})
	var plan Plan
	if s.requireToken != "" && req.Header.Get("X-Transmission-Session-Id") != s.requireToken {
		plan = Conflict(s.requireToken)
	} else {
		plan = s.next(payload.Method)
	}
	s.mu.Unlock()

	if plan.Err != nil {
		return nil, plan.Err
	}
	if plan.noReply {
		return nil, fmt.Errorf("transmissiontest: no plan for method %q", payload.Method)
	}
	header := plan.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: plan.Status,
		Status:     http.StatusText(plan.Status),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(plan.Body)),
		Request:    req,
	}, nil
}

func (s *Server) next(method string) Plan {
	queue := s.plans[method]
	switch len(queue) {
	case 0:
		return Plan{noReply: true}
	case 1:
		return queue[0]
	default:
		s.plans[method] = queue[1:]
		return queue[0]
	}
}
