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

//go:build e2e

package e2e

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	routev1 "github.com/openshift/api/route/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/tinylb/verify/internal/check"
	"github.com/tinylb/verify/internal/names"
	"github.com/tinylb/verify/internal/verify"
)

var _ = Describe("tinylb Gateway API integration", Ordered, func() {
	const (
		gatewayName  = "test-gateway"
		gatewayClass = "istio"
		backendName  = "echo-service"
		routeBinding = "echo-route"
	)

	var (
		serviceName = names.GatewayServiceName(gatewayName, gatewayClass)
		routeName   = names.RouteName(serviceName)

		route *routev1.Route
		svc   *corev1.Service
	)

	ctx := context.Background()

	It("creates the scenario fixtures", func() {
		Expect(f.Fetcher.Ensure(ctx, verify.Gateway(testNamespace, gatewayName, gatewayClass))).To(Succeed())

		deployment, service := verify.EchoBackend(testNamespace, backendName)
		Expect(f.Fetcher.Ensure(ctx, deployment)).To(Succeed())
		Expect(f.Fetcher.Ensure(ctx, service)).To(Succeed())

		Expect(f.Fetcher.Ensure(ctx, verify.LoadBalancerService(testNamespace, serviceName, gatewayName))).To(Succeed())
		Expect(f.Fetcher.Ensure(ctx, verify.HTTPRoute(testNamespace, routeBinding, gatewayName, backendName))).To(Succeed())
	})

	It("waits for tinylb to create the route", func() {
		var err error
		route, err = f.WaitForRoute(ctx, testNamespace, serviceName)
		Expect(err).NotTo(HaveOccurred())
	})

	It("verifies the route configuration", func() {
		Expect(check.RouteForService(route, serviceName)).To(BeEmpty())
		Expect(route.Spec.Host).To(Equal(names.RouteHostname(serviceName, testNamespace)))
		Expect(check.RouteHasTargetPort(route)).To(BeTrue())
	})

	It("waits for the service to get its external hostname", func() {
		var err error
		svc, err = f.WaitForServiceIngress(ctx, testNamespace, serviceName)
		Expect(err).NotTo(HaveOccurred())
		Expect(check.ServiceMatchesRoute(svc, route)).To(BeEmpty())
	})

	It("waits for the gateway to be programmed with the route address", func() {
		gw, err := f.WaitForGatewayProgrammed(ctx, testNamespace, gatewayName)
		Expect(err).NotTo(HaveOccurred())
		Expect(check.GatewayMatchesRoute(gw, route)).To(BeEmpty())
	})

	It("waits for the backend and the httproute", func() {
		_, err := f.WaitForDeploymentReady(ctx, testNamespace, backendName)
		Expect(err).NotTo(HaveOccurred())

		_, err = f.WaitForHTTPRouteAccepted(ctx, testNamespace, routeBinding)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists the route among tinylb-managed routes", func() {
		routes := &routev1.RouteList{}
		Expect(f.Fetcher.List(ctx, routes, testNamespace, map[string]string{names.ManagedLabel: "true"})).To(Succeed())

		var found bool
		for _, item := range routes.Items {
			if item.Name == routeName {
				found = true
			}
		}
		Expect(found).To(BeTrue(), "route %s not in managed list", routeName)
	})

	It("serves the echo response through the route hostname", func() {
		Expect(f.ProbeHTTPUntil(ctx, route.Spec.Host, verify.EchoResponseText)).To(Succeed())
		Expect(f.ProbeHTTPS(ctx, route.Spec.Host, verify.EchoResponseText)).To(Succeed())
	})
})
