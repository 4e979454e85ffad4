// Package protocol defines the plain-text datagram grammar spoken between the
// coordinator and its clients.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/tourney/go/internal/models"
)

// ErrMalformedRegister is returned for a REGISTER datagram without both fields
var ErrMalformedRegister = errors.New("malformed REGISTER message")

// Wire tokens
const (
	TokenRegister = "REGISTER"
	TokenPing     = "PING"
	TokenChoose   = "CHOOSE"
	TokenShutdown = "SHUTDOWN"

	separator = ":"
)

// Message is one parsed inbound datagram. The concrete type is one of
// Register, Heartbeat, Submission or Unknown.
type Message interface {
	// Kind is a short label used for logging and metrics
	Kind() string
	isMessage()
}

// Register announces a participant
type Register struct {
	Name     string
	Hardware string
}

// Heartbeat refreshes liveness
type Heartbeat struct{}

// Submission carries a choice for the current round
type Submission struct {
	Choice models.Choice
}

// Unknown is anything the grammar does not recognise
type Unknown struct {
	Raw string
}

func (Register) Kind() string   { return "register" }
func (Heartbeat) Kind() string  { return "heartbeat" }
func (Submission) Kind() string { return "submission" }
func (Unknown) Kind() string    { return "unknown" }

func (Register) isMessage()   {}
func (Heartbeat) isMessage()  {}
func (Submission) isMessage() {}
func (Unknown) isMessage()    {}

// Parse classifies a datagram payload. Trailing CR/LF are ignored. Only a
// malformed REGISTER produces an error; anything unrecognised is Unknown.
func Parse(payload []byte) (Message, error) {
	text := string(bytes.TrimRight(payload, "\r\n"))

	if rest, ok := strings.CutPrefix(text, TokenRegister+separator); ok {
		name, hardware, found := strings.Cut(rest, separator)
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRegister, text)
		}
		return Register{Name: name, Hardware: hardware}, nil
	}

	if text == TokenPing {
		return Heartbeat{}, nil
	}

	if choice := models.ParseChoice(text); choice.Valid() {
		return Submission{Choice: choice}, nil
	}

	return Unknown{Raw: text}, nil
}

// FormatRegister renders a REGISTER datagram. The name must not contain ':'.
func FormatRegister(name, hardware string) []byte {
	return []byte(TokenRegister + separator + name + separator + hardware)
}
