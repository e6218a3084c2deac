// Package util provides helper functions shared across integration tests.
//
// Package util holds helpers for the container-backed integration tests: a
// Docker opt-in switch, a Mosquitto broker and a Prometheus scrape poller.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// DockerAvailable reports whether DOCKER_AVAILABLE is "true" or "1".
func DockerAvailable() bool {
	v := os.Getenv("DOCKER_AVAILABLE")
	return v == "true" || v == "1"
}

// WaitForMetric polls the given metrics URL until the provided substring is
// found in the output or the context is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// mosquittoConf opens an anonymous listener with persistence off.
const mosquittoConf = "listener 1883\nallow_anonymous true\npersistence false\n"

// StartMosquitto runs an eclipse-mosquitto container and returns its tcp://
// URL once a client can connect, together with a function terminating it.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				Reader:            strings.NewReader(mosquittoConf),
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("start mosquitto: %w", err)
	}
	stop := func() { _ = cont.Terminate(context.Background()) }

	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("mosquitto endpoint: %w", err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := awaitBroker(readyCtx, endpoint); err != nil {
		stop()
		return "", nil, err
	}
	return endpoint, stop, nil
}

// awaitBroker retries an MQTT connect until the broker accepts one.
func awaitBroker(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("stbs-ready").
		SetConnectTimeout(time.Second)
	for {
		cli := paho.NewClient(opts)
		tok := cli.Connect()
		if tok.WaitTimeout(time.Second) && tok.Error() == nil {
			cli.Disconnect(50)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mosquitto at %s not ready: %w", broker, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}
