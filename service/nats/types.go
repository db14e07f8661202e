package nats

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/brojonat/rawtx/service/db"
)

// SubjectPrefix is the first token of every reconstruction subject.
const SubjectPrefix = "reconstructions"

// Subject returns the subject reconstructions for network are published on.
func Subject(network string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, network)
}

// ReconstructionEvent is published to "reconstructions.{network}" after a
// transaction has been rebuilt from its signature.
type ReconstructionEvent struct {
	Signature string `json:"signature"`
	Network   string `json:"network"`

	// Base64 wire bytes, as returned by the reconstruct endpoint.
	RawTransaction string `json:"raw_transaction"`

	MessageVersion        string `json:"message_version"`
	NumSignatures         int    `json:"num_signatures"`
	NumRequiredSignatures int    `json:"num_required_signatures"`

	PublishedAt time.Time `json:"published_at"`
}

// FromSaveParams converts an archive row into an event for publishing.
func FromSaveParams(p db.SaveReconstructionParams) *ReconstructionEvent {
	return &ReconstructionEvent{
		Signature:             p.Signature,
		Network:               p.Network,
		RawTransaction:        base64.StdEncoding.EncodeToString(p.RawTransaction),
		MessageVersion:        p.MessageVersion,
		NumSignatures:         p.NumSignatures,
		NumRequiredSignatures: p.NumRequiredSignatures,
		PublishedAt:           time.Now().UTC(),
	}
}

// Raw decodes the event's Base64 payload.
func (e *ReconstructionEvent) Raw() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.RawTransaction)
}
