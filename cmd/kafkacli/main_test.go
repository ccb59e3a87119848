package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitBrokersTrimsAndDropsEmpty(t *testing.T) {
	got := splitBrokers(" broker-1:9092, broker-2:9092 ,,broker-3:9092")
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092", "broker-3:9092"}, got)
}

func TestSplitBrokersSingleAddr(t *testing.T) {
	require.Equal(t, []string{"localhost:9092"}, splitBrokers("localhost:9092"))
}
