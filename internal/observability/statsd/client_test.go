package statsd

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricName(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "llmjobs"}
	assert.Equal(t, "llmjobs.webhook.received", c.metricName("webhook.received"))
	assert.Equal(t, "llmjobs.sweep_deleted", c.metricName(" sweep/deleted "))
	assert.Equal(t, "llmjobs", c.metricName(""))

	bare := &Client{}
	assert.Equal(t, "job.transition", bare.metricName("job.transition"))
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " llmjobs "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	got := formatTags(global, local)
	assert.Equal(t, "|#env:stage,result:success,service:llmjobs", got)

	assert.Empty(t, formatTags(nil, nil))
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{"env": "prod", "": "ignored"}
	cloned := cloneTags(original)
	require.NotNil(t, cloned)

	cloned["env"] = "stage"
	assert.Equal(t, "prod", original["env"])
	assert.NotContains(t, cloned, "")
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	assert.True(t, client.Enabled())

	require.NoError(t, client.Close())
	assert.False(t, client.Enabled())

	// Close is idempotent, including on a nil client.
	require.NoError(t, client.Close())
	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "statsd dial"))
}
