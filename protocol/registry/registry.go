// Package registry is the static API table of spec.md §4.4: for each
// (apiKey, apiVersion) it holds a request builder, a response parser, and
// the per-API tagged-field framing flags. internal/conn consults it once
// per request to frame bytes correctly without hardcoding per-API logic.
package registry

import (
	"fmt"

	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol"
)

// APIKey is the broker-assigned 16-bit API identifier.
type APIKey int16

const (
	APIKeyProduce          APIKey = 0
	APIKeyFetch            APIKey = 1
	APIKeyListOffsets      APIKey = 2
	APIKeyMetadata         APIKey = 3
	APIKeyOffsetCommit     APIKey = 8
	APIKeyOffsetFetch      APIKey = 9
	APIKeyFindCoordinator  APIKey = 10
	APIKeyJoinGroup        APIKey = 11
	APIKeyHeartbeat        APIKey = 12
	APIKeyLeaveGroup       APIKey = 13
	APIKeySyncGroup        APIKey = 14
	APIKeyDescribeConfigs  APIKey = 32
	APIKeyCreateTopics     APIKey = 19
	APIKeyDeleteTopics     APIKey = 20
	APIKeyInitProducerID   APIKey = 22
	APIKeySaslHandshake    APIKey = 17
	APIKeyApiVersions      APIKey = 18
	APIKeySaslAuthenticate APIKey = 36
)

var names = map[APIKey]string{
	APIKeyProduce:          "Produce",
	APIKeyFetch:            "Fetch",
	APIKeyListOffsets:      "ListOffsets",
	APIKeyMetadata:         "Metadata",
	APIKeyOffsetCommit:     "OffsetCommit",
	APIKeyOffsetFetch:      "OffsetFetch",
	APIKeyFindCoordinator:  "FindCoordinator",
	APIKeyJoinGroup:        "JoinGroup",
	APIKeyHeartbeat:        "Heartbeat",
	APIKeyLeaveGroup:       "LeaveGroup",
	APIKeySyncGroup:        "SyncGroup",
	APIKeyDescribeConfigs:  "DescribeConfigs",
	APIKeyCreateTopics:     "CreateTopics",
	APIKeyDeleteTopics:     "DeleteTopics",
	APIKeyInitProducerID:   "InitProducerId",
	APIKeySaslHandshake:    "SaslHandshake",
	APIKeyApiVersions:      "ApiVersions",
	APIKeySaslAuthenticate: "SaslAuthenticate",
}

func (k APIKey) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("ApiKey(%d)", int16(k))
}

// Request is implemented by every registered request body.
type Request interface {
	Encode(w *protocol.Writer, enc protocol.Encoding)
}

// Response is implemented by every registered response body.
type Response interface {
	Decode(r *protocol.Reader, enc protocol.Encoding) error
}

// Flags controls header framing that differs per API/version per spec.md
// §4.4: ApiVersions is the one entry that must frame without either
// tagged-field trailer regardless of negotiated version.
type Flags struct {
	RequestHeaderTagged  bool
	ResponseHeaderTagged bool
}

// Entry is one row of the registry: a concrete schema bound to an
// (apiKey, apiVersion) pair.
type Entry struct {
	APIKey      APIKey
	APIVersion  int16
	Encoding    protocol.Encoding
	Flags       Flags
	NewRequest  func() Request
	NewResponse func() Response
}

type key struct {
	apiKey  APIKey
	version int16
}

var table = map[key]*Entry{}

// Register adds e to the table. Intended to run from package init()s in
// this package; panics on a duplicate (apiKey, version) since that is
// always a programming error in this registry's own source.
func Register(e *Entry) {
	k := key{e.APIKey, e.APIVersion}
	if _, exists := table[k]; exists {
		panic(fmt.Sprintf("registry: duplicate entry for %s v%d", e.APIKey, e.APIVersion))
	}
	table[k] = e
}

// Lookup returns the entry for (apiKey, version), or UnsupportedFeature if
// no such entry was registered.
func Lookup(apiKey APIKey, version int16) (*Entry, error) {
	e, ok := table[key{apiKey, version}]
	if !ok {
		return nil, kerrors.Unsupported("no registry entry for %s v%d", apiKey, version)
	}
	return e, nil
}

// MaxVersion returns the highest registered version for apiKey, used when
// negotiating against a broker's ApiVersions response.
func MaxVersion(apiKey APIKey) (int16, bool) {
	found := false
	var max int16
	for k := range table {
		if k.apiKey != apiKey {
			continue
		}
		if !found || k.version > max {
			max = k.version
			found = true
		}
	}
	return max, found
}
