// Copyright Project TinyLB Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package verify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tinylb/verify/internal/poll"
)

const probeTimeout = 10 * time.Second

// ProbeHTTP makes a single blocking GET against the hostname and
// verifies the response is a 200 whose body contains expect.
func (f *Framework) ProbeHTTP(ctx context.Context, hostname, expect string) error {
	client := &http.Client{Timeout: probeTimeout}
	return probe(ctx, client, "http://"+hostname, hostname, expect)
}

// ProbeHTTPS is the TLS variant of ProbeHTTP. Certificate
// verification is disabled: passthrough routes serve whatever cert
// the backend carries, which for the test fixture is nothing a system
// root would sign.
func (f *Framework) ProbeHTTPS(ctx context.Context, hostname, expect string) error {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		ServerName: hostname,
		//nolint:gosec
		InsecureSkipVerify: true,
	}
	client := &http.Client{Timeout: probeTimeout, Transport: transport}
	return probe(ctx, client, "https://"+hostname, hostname, expect)
}

// ProbeHTTPUntil retries ProbeHTTP on the framework's poll schedule
// until it succeeds. Connection errors are retried; only the deadline
// ends the wait.
func (f *Framework) ProbeHTTPUntil(ctx context.Context, hostname, expect string) error {
	client := &http.Client{Timeout: probeTimeout}
	return poll.Until(ctx, poll.Target{
		Name:     fmt.Sprintf("http response from %s", hostname),
		Interval: f.RetryInterval,
		Timeout:  f.RetryTimeout,
		Step: func(ctx context.Context) (bool, string, error) {
			if err := probe(ctx, client, "http://"+hostname, hostname, expect); err != nil {
				return false, err.Error(), nil
			}
			return true, "", nil
		},
	})
}

func probe(ctx context.Context, client *http.Client, url, host, expect string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Host = host

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", url, err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", url, res.StatusCode)
	}
	if expect != "" && !strings.Contains(string(body), expect) {
		return fmt.Errorf("response from %s does not contain %q", url, expect)
	}
	return nil
}
