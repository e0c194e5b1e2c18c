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

// Package names holds the naming contract between tinylb and the
// objects it derives. The formulas here mirror what the controller
// writes; a mismatch observed by the suite is a controller bug, so
// derivations are exact, with no fuzzy matching.
package names

// Labels tinylb stamps on every Route it manages.
const (
	ManagedLabel = "tinylb.io/managed"
	ServiceLabel = "tinylb.io/service"
)

// domain is the CRC wildcard apps domain routes are exposed under.
const domain = "apps-crc.testing"

// RouteName returns the name of the Route tinylb creates for a
// LoadBalancer Service.
func RouteName(serviceName string) string {
	return "tinylb-" + serviceName
}

// GatewayServiceName returns the name of the LoadBalancer Service the
// gateway implementation creates for a Gateway. Istio drops its class
// name into the suffix directly; other implementations follow the
// generic <gateway>-<class> convention.
func GatewayServiceName(gatewayName, gatewayClass string) string {
	if gatewayClass == "istio" {
		return gatewayName + "-istio"
	}
	return gatewayName + "-" + gatewayClass
}

// RouteNameForGateway chains the two derivations: Gateway to its
// implementation-created Service, Service to its tinylb Route.
func RouteNameForGateway(gatewayName, gatewayClass string) string {
	return RouteName(GatewayServiceName(gatewayName, gatewayClass))
}

// RouteHostname returns the hostname tinylb assigns to the Route for
// the given Service.
func RouteHostname(serviceName, namespace string) string {
	return serviceName + "-" + namespace + "." + domain
}

// GatewayHostname returns the listener hostname used by the test
// Gateway fixture.
func GatewayHostname(gatewayName string) string {
	return gatewayName + "." + domain
}
