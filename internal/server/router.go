package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/smazurov/relaynode/internal/relay"
)

const relaysResource = "/relays"

// RelayService is the part of the relay controller the API needs.
type RelayService interface {
	Layout() *relay.Layout
	GetState(id relay.ID) (relay.State, error)
	States() []relay.State
	SetState(id relay.ID, enabled bool) error
	SetAllStates(enabled bool) error
}

// Target is a request target split at the first '?'.
type Target struct {
	Resource string
	Query    string
}

// ParseTarget splits a raw request target into resource and query.
func ParseTarget(raw string) Target {
	resource, query, _ := strings.Cut(raw, "?")
	return Target{Resource: resource, Query: query}
}

// Pretty reports whether the query asks for indented JSON. Malformed pairs
// elsewhere in the query do not hide a well-formed pretty=true.
func (t Target) Pretty() bool {
	values, _ := url.ParseQuery(t.Query)
	for _, v := range values["pretty"] {
		if v == "true" {
			return true
		}
	}
	return false
}

// response is a fully rendered reply.
type response struct {
	status      int
	contentType string
	allow       string
	body        []byte
}

func textResponse(status int, text string) *response {
	return &response{
		status:      status,
		contentType: "text/plain",
		body:        []byte(text + "\n"),
	}
}

func notFound() *response {
	return textResponse(http.StatusNotFound, "Resource not found")
}

func methodNotAllowed() *response {
	r := textResponse(http.StatusMethodNotAllowed, "This method is not allowed")
	r.allow = "GET, POST"
	return r
}

func badRequest() *response {
	return textResponse(http.StatusBadRequest, "Bad request")
}

// switchRequest is the body of every POST.
type switchRequest struct {
	Enabled *bool `json:"enabled"`
}

var errMissingEnabled = errors.New(`missing "enabled"`)

func parseSwitch(body []byte) (bool, error) {
	var req switchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return false, err
	}
	if req.Enabled == nil {
		return false, errMissingEnabled
	}
	return *req.Enabled, nil
}

// router maps a request onto the relay controller. It never blocks.
type router struct {
	relays RelayService
}

func (r *router) route(method string, target Target, body []byte) *response {
	pretty := target.Pretty()
	layout := r.relays.Layout()

	if target.Resource == relaysResource {
		switch method {
		case http.MethodGet:
			return r.jsonStates(layout.IDs(), r.relays.States(), pretty)
		case http.MethodPost:
			enabled, err := parseSwitch(body)
			if err != nil {
				return badRequest()
			}
			if err := r.relays.SetAllStates(enabled); err != nil {
				return controllerError(err)
			}
			applied := make([]relay.State, layout.Len())
			for i := range applied {
				applied[i].Enabled = enabled
			}
			return r.jsonStates(layout.IDs(), applied, pretty)
		default:
			return methodNotAllowed()
		}
	}

	key, ok := strings.CutPrefix(target.Resource, relaysResource+"/")
	if !ok {
		return notFound()
	}
	id, ok := layout.Lookup(key)
	if !ok {
		return notFound()
	}

	var state relay.State
	switch method {
	case http.MethodGet:
		var err error
		if state, err = r.relays.GetState(id); err != nil {
			return controllerError(err)
		}
	case http.MethodPost:
		enabled, err := parseSwitch(body)
		if err != nil {
			return badRequest()
		}
		if err := r.relays.SetState(id, enabled); err != nil {
			return controllerError(err)
		}
		state.Enabled = enabled
	default:
		return methodNotAllowed()
	}
	return r.jsonStates([]relay.ID{id}, []relay.State{state}, pretty)
}

// jsonStates renders {"<id>": {"enabled": bool}, ...} in ordinal order.
func (r *router) jsonStates(ids []relay.ID, states []relay.State, pretty bool) *response {
	layout := r.relays.Layout()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(layout.Key(id))
		value, _ := json.Marshal(states[i])
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	out := buf.Bytes()
	if pretty {
		var indented bytes.Buffer
		if err := json.Indent(&indented, out, "", "    "); err == nil {
			out = indented.Bytes()
		}
	}

	return &response{
		status:      http.StatusOK,
		contentType: "application/json",
		body:        append(out, '\n'),
	}
}

func controllerError(err error) *response {
	if errors.Is(err, relay.ErrHardware) || errors.Is(err, relay.ErrClosed) {
		return textResponse(http.StatusServiceUnavailable, "Relay hardware unavailable")
	}
	return textResponse(http.StatusInternalServerError, "Internal server error")
}
