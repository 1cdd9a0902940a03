package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "fetch-outcomes")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubSink_PublishesEvents(t *testing.T) {
	t.Parallel()
	srv, topic := newTestTopic(t)
	sink := NewPubSubSink(topic, nil)

	outcome := successOutcome()
	sink.Notify(context.Background(), outcome)

	require.Eventually(t, func() bool {
		return len(srv.Messages()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	msg := srv.Messages()[0]
	require.Equal(t, "github.com", msg.Attributes["platform"])
	require.Equal(t, outcome.CrawlRun.String(), msg.Attributes["crawl_run"])

	var evt Event
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	require.True(t, evt.OK)
	require.Equal(t, "github.com/acme/widget/okh.toml", evt.ID)
}
