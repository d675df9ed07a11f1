package fixtures

import (
	"context"
	"testing"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/stretchr/testify/require"
)

func TestNewEchoAgent_EchoesContent(t *testing.T) {
	a := NewEchoAgent("echo-1", capability.KindDataProcessing)
	msg, err := agent.NewMessage("test", a.ID(), "hello")
	require.NoError(t, err)

	result, err := a.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, "hello", result)
}

func TestNewFailingAgent_AlwaysFails(t *testing.T) {
	a := NewFailingAgent("fail-1", capability.KindDataProcessing)
	msg, err := agent.NewMessage("test", a.ID(), "hello")
	require.NoError(t, err)

	_, err = a.ProcessMessage(context.Background(), msg)
	require.Error(t, err)
}

func TestNewMonitorAgent_AdvertisesMonitoring(t *testing.T) {
	a := NewMonitorAgent("mon-1", capability.KindDataProcessing)
	require.True(t, a.HasCapability(capability.KindDataProcessing))
	require.True(t, a.HasCapability(capability.KindMonitoring))
}

func TestNewResearchAgent_AdvertisesResearch(t *testing.T) {
	a := NewResearchAgent("res-1")
	require.True(t, a.HasCapability(capability.KindResearch))
}
