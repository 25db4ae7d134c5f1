package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/a2f-auth/a2f/internal/verifier"
)

// Code is a close code sent when a channel ends.
type Code int

const (
	CodeUnknownError  Code = 4000
	CodeCreateSuccess Code = 4001
	CodeCreateError   Code = 4002
	CodeLoginSuccess  Code = 4003
	CodeLoginError    Code = 4004
)

func (c Code) String() string {
	switch c {
	case CodeUnknownError:
		return "unknown-error"
	case CodeCreateSuccess:
		return "create-success"
	case CodeCreateError:
		return "create-error"
	case CodeLoginSuccess:
		return "login-success"
	case CodeLoginError:
		return "login-error"
	default:
		return fmt.Sprintf("code-%d", int(c))
	}
}

// Request types.
const (
	TypeCreate = "create"
	TypeLogin  = "login"
)

var (
	// ErrMalformedRequest is returned for payloads that are not a request object.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnknownType is returned for requests of an unrecognized type.
	ErrUnknownType = errors.New("unknown request type")
)

// Request is the single message a front end sends on a channel.
type Request struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	TokenID uint64 `json:"tokenId"`
	// Asset is the field name older front ends use for TokenID.
	Asset uint64 `json:"asset,omitempty"`
}

// Outcome is the terminal close code and reason of a channel.
type Outcome struct {
	Code   Code
	Reason string
}

// DecodeRequest parses and validates a request message.
func DecodeRequest(msg []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	switch req.Type {
	case TypeCreate:
		if req.TokenID == 0 {
			req.TokenID = req.Asset
		}
	case TypeLogin:
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
	return req, nil
}

// OutcomeFor maps a flow result of the given request type onto the wire vocabulary.
func OutcomeFor(reqType string, res verifier.Result) Outcome {
	if res.Status == verifier.StatusError {
		return Outcome{Code: CodeUnknownError, Reason: res.Reason}
	}
	switch reqType {
	case TypeCreate:
		if res.OK() {
			return Outcome{Code: CodeCreateSuccess, Reason: res.Payload}
		}
		return Outcome{Code: CodeCreateError, Reason: res.Reason}
	case TypeLogin:
		if res.OK() {
			return Outcome{Code: CodeLoginSuccess, Reason: res.Payload}
		}
		return Outcome{Code: CodeLoginError, Reason: res.Reason}
	default:
		return Outcome{Code: CodeUnknownError, Reason: res.Reason}
	}
}
