package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionRoundTrip(t *testing.T) {
	b := encodeSubscription([]string{"orders", "payments"})
	topics, err := decodeSubscription(b)
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "payments"}, topics)
}

func TestAssignmentRoundTrip(t *testing.T) {
	assignment := topicPartitions{"orders": {0, 1, 2}}
	b := encodeAssignment(assignment)
	decoded, err := decodeAssignment(b)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 1, 2}, decoded["orders"])
}

func TestRangeAssignorSplitsPartitionsEvenly(t *testing.T) {
	members := map[string][]string{
		"member-a": {"orders"},
		"member-b": {"orders"},
	}
	counts := map[string]int{"orders": 4}

	result := rangeAssignor(members, counts)
	require.Len(t, result["member-a"]["orders"], 2)
	require.Len(t, result["member-b"]["orders"], 2)
}

func TestRangeAssignorGivesRemainderToEarlierMembers(t *testing.T) {
	members := map[string][]string{
		"member-a": {"orders"},
		"member-b": {"orders"},
		"member-c": {"orders"},
	}
	counts := map[string]int{"orders": 5}

	result := rangeAssignor(members, counts)
	require.Len(t, result["member-a"]["orders"], 2)
	require.Len(t, result["member-b"]["orders"], 2)
	require.Len(t, result["member-c"]["orders"], 1)
}

func TestRangeAssignorSkipsUnsubscribedTopics(t *testing.T) {
	members := map[string][]string{
		"member-a": {"orders"},
		"member-b": {"payments"},
	}
	counts := map[string]int{"orders": 2, "payments": 2}

	result := rangeAssignor(members, counts)
	_, hasPayments := result["member-a"]["payments"]
	require.False(t, hasPayments)
	require.Len(t, result["member-b"]["payments"], 2)
}
