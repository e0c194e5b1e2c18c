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
	"fmt"

	routev1 "github.com/openshift/api/route/v1"
	corev1 "k8s.io/api/core/v1"
	gatewayapi_v1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/tinylb/verify/internal/check"
	"github.com/tinylb/verify/internal/names"
	"github.com/tinylb/verify/internal/scenario"
)

// ScenarioConfig parameterizes one verification run.
type ScenarioConfig struct {
	Namespace    string
	GatewayName  string
	GatewayClass string

	// BackendName names the echo Deployment/Service pair.
	BackendName string

	// HTTPRouteName names the HTTPRoute binding gateway to backend.
	HTTPRouteName string

	// SkipHTTPProbe leaves out the end-to-end request, for clusters
	// whose apps domain is not resolvable from the test runner.
	SkipHTTPProbe bool

	// SkipCleanup records cleanup as skipped instead of deleting the
	// namespace.
	SkipCleanup bool
}

func (c *ScenarioConfig) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "gateway-api-test"
	}
	if c.GatewayName == "" {
		c.GatewayName = "test-gateway"
	}
	if c.GatewayClass == "" {
		c.GatewayClass = "istio"
	}
	if c.BackendName == "" {
		c.BackendName = "echo-service"
	}
	if c.HTTPRouteName == "" {
		c.HTTPRouteName = "echo-route"
	}
}

// runState carries values discovered by earlier steps into later
// ones. A hostname observed once is passed forward, never re-derived,
// so every later check compares against the same observation.
type runState struct {
	route   *routev1.Route
	service *corev1.Service
	gateway *gatewayapi_v1.Gateway
}

// EnsureNamespace creates the scenario namespace if it is missing.
// Run before the pipeline; its failure is a setup fault, not a step
// failure.
func (f *Framework) EnsureNamespace(ctx context.Context, name string) error {
	if err := f.Fetcher.Ensure(ctx, Namespace(name)); err != nil {
		return fmt.Errorf("ensuring namespace %s: %w", name, err)
	}
	return nil
}

// BuildPipeline assembles the fixed verification pipeline. Step order
// is load-bearing: each await observes the effect of an earlier
// create, and each invariant check consumes snapshots captured by the
// await before it.
func (f *Framework) BuildPipeline(cfg ScenarioConfig) *scenario.Pipeline {
	cfg.applyDefaults()

	serviceName := names.GatewayServiceName(cfg.GatewayName, cfg.GatewayClass)
	state := &runState{}

	steps := []scenario.Step{
		{
			Name: "CreateGateway",
			Run: func(ctx context.Context) error {
				return f.Fetcher.Ensure(ctx, Gateway(cfg.Namespace, cfg.GatewayName, cfg.GatewayClass))
			},
		},
		{
			Name: "CreateBackend",
			Run: func(ctx context.Context) error {
				deployment, service := EchoBackend(cfg.Namespace, cfg.BackendName)
				if err := f.Fetcher.Ensure(ctx, deployment); err != nil {
					return err
				}
				return f.Fetcher.Ensure(ctx, service)
			},
		},
		{
			Name: "CreateLBService",
			Run: func(ctx context.Context) error {
				return f.Fetcher.Ensure(ctx, LoadBalancerService(cfg.Namespace, serviceName, cfg.GatewayName))
			},
		},
		{
			Name: "CreateHTTPRoute",
			Run: func(ctx context.Context) error {
				return f.Fetcher.Ensure(ctx, HTTPRoute(cfg.Namespace, cfg.HTTPRouteName, cfg.GatewayName, cfg.BackendName))
			},
		},
		{
			Name: "AwaitRouteCreated",
			Run: func(ctx context.Context) error {
				route, err := f.WaitForRoute(ctx, cfg.Namespace, serviceName)
				if err != nil {
					return err
				}
				state.route = route
				return nil
			},
		},
		{
			Name: "CheckRouteInvariants",
			Run: func(ctx context.Context) error {
				violations := check.RouteForService(state.route, serviceName)
				if host := names.RouteHostname(serviceName, cfg.Namespace); state.route.Spec.Host != host {
					violations = append(violations, check.Violation{
						Invariant: "route-hostname-pattern",
						Reason:    fmt.Sprintf("Route host is %q, want %q", state.route.Spec.Host, host),
					})
				}
				return check.Error(violations)
			},
		},
		{
			Name: "AwaitServiceExternalIP",
			Run: func(ctx context.Context) error {
				svc, err := f.WaitForServiceIngress(ctx, cfg.Namespace, serviceName)
				if err != nil {
					return err
				}
				state.service = svc
				return nil
			},
		},
		{
			Name: "CheckServiceRouteInvariants",
			Run: func(ctx context.Context) error {
				return check.Error(check.ServiceMatchesRoute(state.service, state.route))
			},
		},
		{
			Name: "AwaitGatewayProgrammed",
			Run: func(ctx context.Context) error {
				gw, err := f.WaitForGatewayProgrammed(ctx, cfg.Namespace, cfg.GatewayName)
				if err != nil {
					return err
				}
				state.gateway = gw
				return nil
			},
		},
		{
			Name: "CheckGatewayRouteInvariants",
			Run: func(ctx context.Context) error {
				return check.Error(check.GatewayMatchesRoute(state.gateway, state.route))
			},
		},
		{
			Name: "AwaitBackendReady",
			Run: func(ctx context.Context) error {
				_, err := f.WaitForDeploymentReady(ctx, cfg.Namespace, cfg.BackendName)
				return err
			},
		},
		{
			Name: "AwaitHTTPRouteAccepted",
			Run: func(ctx context.Context) error {
				_, err := f.WaitForHTTPRouteAccepted(ctx, cfg.Namespace, cfg.HTTPRouteName)
				return err
			},
		},
		{
			Name: "EndToEndHTTPProbe",
			Run: func(ctx context.Context) error {
				if cfg.SkipHTTPProbe {
					f.Log.Info("http probe disabled, skipping request")
					return nil
				}
				return f.ProbeHTTP(ctx, state.route.Spec.Host, EchoResponseText)
			},
		},
	}

	return &scenario.Pipeline{
		Log:         f.Log,
		Steps:       steps,
		SkipCleanup: cfg.SkipCleanup,
		Cleanup: scenario.Step{
			Name: "Cleanup",
			Run: func(ctx context.Context) error {
				// Deleting the namespace cascades to every namespaced
				// fixture the run created.
				return f.Fetcher.Delete(ctx, Namespace(cfg.Namespace))
			},
		},
	}
}
