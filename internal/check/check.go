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

// Package check validates structural invariants across converged
// resource pairs (Service/Route, Gateway/Route). Checks within a set
// are independent and every violation in a batch is collected, so one
// failed run reports the full picture rather than the first mismatch.
package check

import (
	"fmt"
	"strings"

	routev1 "github.com/openshift/api/route/v1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	gatewayapi_v1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/tinylb/verify/internal/names"
)

// Violation is one failed invariant: a stable identifier plus a
// human-readable reason.
type Violation struct {
	Invariant string
	Reason    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Invariant, v.Reason)
}

// Error aggregates a batch of violations into a single error, one
// violation per line. It returns nil for an empty batch.
func Error(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return &ViolationError{Violations: violations, message: strings.Join(lines, "\n")}
}

// ViolationError is the error form of a non-empty violation batch.
type ViolationError struct {
	Violations []Violation

	message string
}

func (e *ViolationError) Error() string { return e.message }

// RouteForService verifies that a Route carries the configuration
// tinylb writes for the named Service: both ownership labels,
// passthrough TLS termination, and the Service as its target.
func RouteForService(route *routev1.Route, serviceName string) []Violation {
	var violations []Violation

	if route.Labels[names.ManagedLabel] != "true" {
		violations = append(violations, Violation{
			Invariant: "route-managed-label",
			Reason:    fmt.Sprintf("Route missing %s=true label", names.ManagedLabel),
		})
	}
	if got := route.Labels[names.ServiceLabel]; got != serviceName {
		violations = append(violations, Violation{
			Invariant: "route-service-label",
			Reason:    fmt.Sprintf("Route %s label is %q, want %q", names.ServiceLabel, got, serviceName),
		})
	}
	if route.Spec.TLS == nil || route.Spec.TLS.Termination != routev1.TLSTerminationPassthrough {
		violations = append(violations, Violation{
			Invariant: "route-tls-passthrough",
			Reason:    fmt.Sprintf("Route TLS termination is %s, want %s", routeTermination(route), routev1.TLSTerminationPassthrough),
		})
	}
	if route.Spec.To.Name != serviceName {
		violations = append(violations, Violation{
			Invariant: "route-target-service",
			Reason:    fmt.Sprintf("Route targets service %q, want %q", route.Spec.To.Name, serviceName),
		})
	}

	return violations
}

func routeTermination(route *routev1.Route) string {
	if route.Spec.TLS == nil {
		return "<unset>"
	}
	return string(route.Spec.TLS.Termination)
}

// ServiceMatchesRoute verifies that the Service's load balancer
// ingress hostname equals the Route's host, i.e. that tinylb fed the
// Route hostname back into the Service status.
func ServiceMatchesRoute(svc *corev1.Service, route *routev1.Route) []Violation {
	if len(svc.Status.LoadBalancer.Ingress) == 0 {
		return []Violation{{
			Invariant: "service-ingress-present",
			Reason:    "Service has no load balancer ingress",
		}}
	}

	var violations []Violation
	if got := svc.Status.LoadBalancer.Ingress[0].Hostname; got != route.Spec.Host {
		violations = append(violations, Violation{
			Invariant: "service-ingress-hostname",
			Reason:    fmt.Sprintf("Service external IP (%s) doesn't match route host (%s)", got, route.Spec.Host),
		})
	}
	return violations
}

// GatewayMatchesRoute verifies the Gateway status tinylb is expected
// to program: Accepted and Programmed conditions both true, and the
// first status address equal to the Route's host. The address checks
// are independent of the condition checks so a Gateway with a good
// address but stale conditions (or vice versa) reports both halves.
func GatewayMatchesRoute(gw *gatewayapi_v1.Gateway, route *routev1.Route) []Violation {
	var violations []Violation

	if status := conditionStatus(gw.Status.Conditions, string(gatewayapi_v1.GatewayConditionAccepted)); status != metav1.ConditionTrue {
		violations = append(violations, Violation{
			Invariant: "gateway-accepted",
			Reason:    fmt.Sprintf("Gateway not Accepted (status: %s)", status),
		})
	}
	if status := conditionStatus(gw.Status.Conditions, string(gatewayapi_v1.GatewayConditionProgrammed)); status != metav1.ConditionTrue {
		violations = append(violations, Violation{
			Invariant: "gateway-programmed",
			Reason:    fmt.Sprintf("Gateway not Programmed (status: %s)", status),
		})
	}

	if len(gw.Status.Addresses) == 0 {
		violations = append(violations, Violation{
			Invariant: "gateway-address-present",
			Reason:    "Gateway has no addresses",
		})
		return violations
	}
	if got := gw.Status.Addresses[0].Value; got != route.Spec.Host {
		violations = append(violations, Violation{
			Invariant: "gateway-address-hostname",
			Reason:    fmt.Sprintf("Gateway address (%s) doesn't match route host (%s)", got, route.Spec.Host),
		})
	}

	return violations
}

// DeploymentReady reports whether every desired replica is ready. A
// Deployment that has not reported readyReplicas yet is not ready;
// that is an expected transient, not an error.
func DeploymentReady(d *appsv1.Deployment) bool {
	if d == nil || d.Spec.Replicas == nil {
		return false
	}
	return d.Status.ReadyReplicas > 0 && d.Status.ReadyReplicas == *d.Spec.Replicas
}

// GatewayProgrammed reports whether the gateway has a Programmed: true
// status condition.
func GatewayProgrammed(gw *gatewayapi_v1.Gateway) bool {
	if gw == nil {
		return false
	}
	return conditionStatus(gw.Status.Conditions, string(gatewayapi_v1.GatewayConditionProgrammed)) == metav1.ConditionTrue
}

// GatewayHasAddress reports whether the gateway has a non-empty
// status address.
func GatewayHasAddress(gw *gatewayapi_v1.Gateway) bool {
	if gw == nil {
		return false
	}
	return len(gw.Status.Addresses) > 0 && gw.Status.Addresses[0].Value != ""
}

// HTTPRouteAccepted reports whether any parent gateway has accepted
// the route.
func HTTPRouteAccepted(route *gatewayapi_v1.HTTPRoute) bool {
	if route == nil {
		return false
	}
	for _, parent := range route.Status.Parents {
		if conditionStatus(parent.Conditions, string(gatewayapi_v1.RouteConditionAccepted)) == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// ServiceHasIngress reports whether a LoadBalancer Service has been
// assigned at least one ingress entry.
func ServiceHasIngress(svc *corev1.Service) bool {
	return svc != nil && len(svc.Status.LoadBalancer.Ingress) > 0
}

// RouteHasTargetPort reports whether the Route pins a target port.
// tinylb selects one whenever the Service exposes any ports.
func RouteHasTargetPort(route *routev1.Route) bool {
	return route != nil && route.Spec.Port != nil && route.Spec.Port.TargetPort.String() != ""
}

func conditionStatus(conditions []metav1.Condition, conditionType string) metav1.ConditionStatus {
	for _, cond := range conditions {
		if cond.Type == conditionType {
			return cond.Status
		}
	}
	return metav1.ConditionUnknown
}
