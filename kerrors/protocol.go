package kerrors

import (
	"errors"
	"fmt"
)

// ProtocolCode is a broker-assigned error code as carried on the wire
// (int16). The symbolic names mirror the broker's own published taxonomy.
type ProtocolCode int16

const (
	CodeNone                        ProtocolCode = 0
	CodeUnknownServerError          ProtocolCode = -1
	CodeOffsetOutOfRange            ProtocolCode = 1
	CodeCorruptMessage              ProtocolCode = 2
	CodeUnknownTopicOrPartition     ProtocolCode = 3
	CodeLeaderNotAvailable          ProtocolCode = 5
	CodeNotLeaderOrFollower         ProtocolCode = 6
	CodeRequestTimedOut             ProtocolCode = 7
	CodeBrokerNotAvailable          ProtocolCode = 8
	CodeReplicaNotAvailable         ProtocolCode = 9
	CodeMessageTooLarge             ProtocolCode = 10
	CodeNetworkException            ProtocolCode = 13
	CodeGroupLoadInProgress         ProtocolCode = 14
	CodeGroupCoordinatorNotAvail    ProtocolCode = 15
	CodeNotCoordinator              ProtocolCode = 16
	CodeIllegalGeneration           ProtocolCode = 22
	CodeInconsistentGroupProtocol   ProtocolCode = 23
	CodeUnknownMemberID              ProtocolCode = 25
	CodeInvalidSessionTimeout        ProtocolCode = 26
	CodeRebalanceInProgress           ProtocolCode = 27
	CodeInvalidCommitOffsetSize       ProtocolCode = 28
	CodeTopicAuthorizationFailed      ProtocolCode = 29
	CodeGroupAuthorizationFailed      ProtocolCode = 30
	CodeClusterAuthorizationFailed    ProtocolCode = 31
	CodeInvalidTimestamp              ProtocolCode = 32
	CodeUnsupportedSASLMechanism      ProtocolCode = 33
	CodeIllegalSASLState              ProtocolCode = 34
	CodeUnsupportedVersion            ProtocolCode = 35
	CodeTopicAlreadyExists             ProtocolCode = 36
	CodeInvalidPartitions              ProtocolCode = 37
	CodeNotEnoughReplicas              ProtocolCode = 19
	CodeNotEnoughReplicasAfterAppend   ProtocolCode = 20
	CodeInvalidProducerEpoch            ProtocolCode = 47
	CodeOutOfOrderSequenceNumber         ProtocolCode = 45
	CodeDuplicateSequenceNumber          ProtocolCode = 46
	CodeUnknownProducerID                ProtocolCode = 59
	CodeFencedInstanceID                 ProtocolCode = 82
)

var codeNames = map[ProtocolCode]string{
	CodeNone:                      "NONE",
	CodeUnknownServerError:        "UNKNOWN_SERVER_ERROR",
	CodeOffsetOutOfRange:          "OFFSET_OUT_OF_RANGE",
	CodeCorruptMessage:            "CORRUPT_MESSAGE",
	CodeUnknownTopicOrPartition:   "UNKNOWN_TOPIC_OR_PARTITION",
	CodeLeaderNotAvailable:        "LEADER_NOT_AVAILABLE",
	CodeNotLeaderOrFollower:       "NOT_LEADER_OR_FOLLOWER",
	CodeRequestTimedOut:           "REQUEST_TIMED_OUT",
	CodeBrokerNotAvailable:        "BROKER_NOT_AVAILABLE",
	CodeReplicaNotAvailable:       "REPLICA_NOT_AVAILABLE",
	CodeMessageTooLarge:           "MESSAGE_TOO_LARGE",
	CodeNetworkException:          "NETWORK_EXCEPTION",
	CodeGroupLoadInProgress:       "GROUP_LOAD_IN_PROGRESS",
	CodeGroupCoordinatorNotAvail:  "GROUP_COORDINATOR_NOT_AVAILABLE",
	CodeNotCoordinator:            "NOT_COORDINATOR",
	CodeNotEnoughReplicas:         "NOT_ENOUGH_REPLICAS",
	CodeNotEnoughReplicasAfterAppend: "NOT_ENOUGH_REPLICAS_AFTER_APPEND",
	CodeIllegalGeneration:         "ILLEGAL_GENERATION",
	CodeInconsistentGroupProtocol: "INCONSISTENT_GROUP_PROTOCOL",
	CodeUnknownMemberID:           "UNKNOWN_MEMBER_ID",
	CodeInvalidSessionTimeout:     "INVALID_SESSION_TIMEOUT",
	CodeRebalanceInProgress:       "REBALANCE_IN_PROGRESS",
	CodeInvalidCommitOffsetSize:   "INVALID_COMMIT_OFFSET_SIZE",
	CodeTopicAuthorizationFailed:  "TOPIC_AUTHORIZATION_FAILED",
	CodeGroupAuthorizationFailed:  "GROUP_AUTHORIZATION_FAILED",
	CodeClusterAuthorizationFailed: "CLUSTER_AUTHORIZATION_FAILED",
	CodeInvalidTimestamp:          "INVALID_TIMESTAMP",
	CodeUnsupportedSASLMechanism:  "UNSUPPORTED_SASL_MECHANISM",
	CodeIllegalSASLState:          "ILLEGAL_SASL_STATE",
	CodeUnsupportedVersion:        "UNSUPPORTED_VERSION",
	CodeTopicAlreadyExists:        "TOPIC_ALREADY_EXISTS",
	CodeInvalidPartitions:         "INVALID_PARTITIONS",
	CodeOutOfOrderSequenceNumber:  "OUT_OF_ORDER_SEQUENCE_NUMBER",
	CodeDuplicateSequenceNumber:   "DUPLICATE_SEQUENCE_NUMBER",
	CodeInvalidProducerEpoch:      "INVALID_PRODUCER_EPOCH",
	CodeUnknownProducerID:         "UNKNOWN_PRODUCER_ID",
	CodeFencedInstanceID:          "FENCED_INSTANCE_ID",
}

// Name returns the broker's symbolic name for a code, or a fallback for
// codes outside the known table.
func (c ProtocolCode) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ERROR_%d", int16(c))
}

// staleTopology is the set of codes that invalidate cached metadata or
// coordinator bindings per spec.md §4.7/§4.9/§7.
var staleTopology = map[ProtocolCode]bool{
	CodeUnknownTopicOrPartition: true,
	CodeNotLeaderOrFollower:     true,
	CodeNotCoordinator:          true,
	CodeLeaderNotAvailable:      true,
}

func (c ProtocolCode) IsStaleTopology() bool {
	return staleTopology[c]
}

// ProtocolError wraps a single non-zero broker error code.
type ProtocolError struct {
	Code    ProtocolCode
	Message string
}

func NewProtocolError(code ProtocolCode, message string) *Error {
	return &Error{
		Kind:   ProtocolError,
		Reason: fmt.Sprintf("%s (%d): %s", code.Name(), code, message),
		cause:  &ProtocolError{Code: code, Message: message},
	}
}

func (p *ProtocolError) Error() string {
	if p.Message != "" {
		return fmt.Sprintf("%s: %s", p.Code.Name(), p.Message)
	}
	return p.Code.Name()
}

// AsProtocolCode extracts the ProtocolCode from err if it (or something it
// wraps) is a *ProtocolError.
func AsProtocolCode(err error) (ProtocolCode, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	pe, ok := e.cause.(*ProtocolError)
	if !ok {
		return 0, false
	}
	return pe.Code, true
}

// ResponseError carries the full per-field error map of a partially failed
// batch response per spec.md §7, alongside the raw response so callers can
// still read offsets that did succeed.
type ResponseError struct {
	APIKey     int16
	APIVersion int16
	Errors     map[string]ProtocolCode
	Response   interface{}
}

func (r *ResponseError) Error() string {
	return fmt.Sprintf("api %d v%d: %d field error(s)", r.APIKey, r.APIVersion, len(r.Errors))
}

// MultiError aggregates independent failures from parallel sub-requests or
// partition-level results (spec.md §4.11 MultipleErrors kind).
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred, first: %v", len(m.Errors), m.Errors[0])
}

func (m *MultiError) Unwrap() []error { return m.Errors }

// Multi builds a *Error of kind MultipleErrors from a non-empty slice of
// errors, or returns nil if errs is empty.
func Multi(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &Error{Kind: MultipleErrors, Reason: fmt.Sprintf("%d error(s)", len(errs)), cause: &MultiError{Errors: errs}}
}
