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

package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteName(t *testing.T) {
	assert.Equal(t, "tinylb-svc-a", RouteName("svc-a"))
	assert.Equal(t, "tinylb-test-gateway-istio", RouteName("test-gateway-istio"))
}

func TestGatewayServiceName(t *testing.T) {
	assert.Equal(t, "test-gateway-istio", GatewayServiceName("test-gateway", "istio"))
	assert.Equal(t, "test-gateway-contour", GatewayServiceName("test-gateway", "contour"))
	assert.Equal(t, "gw-envoy-gateway", GatewayServiceName("gw", "envoy-gateway"))
}

func TestRouteNameForGateway(t *testing.T) {
	assert.Equal(t, "tinylb-test-gateway-istio", RouteNameForGateway("test-gateway", "istio"))
	assert.Equal(t, "tinylb-gw-contour", RouteNameForGateway("gw", "contour"))
}

func TestRouteHostname(t *testing.T) {
	assert.Equal(t, "svc-a-ns-b.apps-crc.testing", RouteHostname("svc-a", "ns-b"))
	assert.Equal(t, "test-service-test-namespace.apps-crc.testing", RouteHostname("test-service", "test-namespace"))
}

func TestGatewayHostname(t *testing.T) {
	assert.Equal(t, "test-gateway.apps-crc.testing", GatewayHostname("test-gateway"))
}

// The derivations are the controller's naming contract; they must be
// deterministic functions of their inputs alone.
func TestDerivationsAreDeterministic(t *testing.T) {
	for range 10 {
		assert.Equal(t, RouteName("svc"), RouteName("svc"))
		assert.Equal(t, GatewayServiceName("gw", "istio"), GatewayServiceName("gw", "istio"))
		assert.Equal(t, RouteHostname("svc", "ns"), RouteHostname("svc", "ns"))
	}
}
