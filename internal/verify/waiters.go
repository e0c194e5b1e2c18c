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
	"errors"
	"fmt"

	routev1 "github.com/openshift/api/route/v1"
	"github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayapi_v1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/tinylb/verify/internal/check"
	"github.com/tinylb/verify/internal/names"
	"github.com/tinylb/verify/internal/poll"
)

// Every waiter follows the same shape: a fresh object is fetched each
// attempt, absence keeps the poll going, any other fault aborts it,
// and the converged snapshot is returned to the caller.

// WaitForRoute waits for tinylb to create the Route for serviceName.
// A route that exists but carries another service's owner label will
// never become ours, so that aborts the wait instead of burning the
// remaining deadline.
func (f *Framework) WaitForRoute(ctx context.Context, namespace, serviceName string) (*routev1.Route, error) {
	key := client.ObjectKey{Namespace: namespace, Name: names.RouteName(serviceName)}
	log := f.Log.WithField("route", key.String())

	var route *routev1.Route
	attempt := 0
	err := poll.Until(ctx, poll.Target{
		Name:     fmt.Sprintf("route %s", key),
		Interval: f.RetryInterval,
		Timeout:  f.RetryTimeout,
		Step: func(ctx context.Context) (bool, string, error) {
			attempt++
			got := &routev1.Route{}
			ok, err := f.Fetcher.Get(ctx, key, got)
			if err != nil {
				return false, "", err
			}
			if !ok {
				log.WithField("attempt", attempt).Info("waiting for route to be created")
				return false, "route does not exist yet", nil
			}
			if owner, ok := got.Labels[names.ServiceLabel]; ok && owner != serviceName {
				return false, "", poll.Fatal("route %s is owned by service %q, not %q", key, owner, serviceName)
			}
			route = got
			return true, "", nil
		},
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

// WaitForServiceIngress waits for the LoadBalancer Service to be
// assigned an ingress entry, which tinylb populates from the Route
// hostname.
func (f *Framework) WaitForServiceIngress(ctx context.Context, namespace, name string) (*corev1.Service, error) {
	key := client.ObjectKey{Namespace: namespace, Name: name}
	log := f.Log.WithField("service", key.String())

	var svc *corev1.Service
	attempt := 0
	err := poll.Until(ctx, poll.Target{
		Name:     fmt.Sprintf("external IP on service %s", key),
		Interval: f.RetryInterval,
		Timeout:  f.RetryTimeout,
		Step: func(ctx context.Context) (bool, string, error) {
			attempt++
			got := &corev1.Service{}
			ok, err := f.Fetcher.Get(ctx, key, got)
			if err != nil {
				return false, "", err
			}
			if !ok {
				log.WithField("attempt", attempt).Info("waiting for service to exist")
				return false, "service does not exist yet", nil
			}
			if !check.ServiceHasIngress(got) {
				log.WithField("attempt", attempt).Info("waiting for service external IP")
				return false, "service has no load balancer ingress", nil
			}
			svc = got
			return true, "", nil
		},
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// WaitForGatewayProgrammed waits for the Gateway to report a
// Programmed: true condition and at least one status address. On
// timeout the last observed status is dumped to the log for
// diagnosis.
func (f *Framework) WaitForGatewayProgrammed(ctx context.Context, namespace, name string) (*gatewayapi_v1.Gateway, error) {
	key := client.ObjectKey{Namespace: namespace, Name: name}
	log := f.Log.WithField("gateway", key.String())

	var gw *gatewayapi_v1.Gateway
	attempt := 0
	err := poll.Until(ctx, poll.Target{
		Name:     fmt.Sprintf("gateway %s to be programmed", key),
		Interval: f.RetryInterval,
		Timeout:  f.RetryTimeout,
		Step: func(ctx context.Context) (bool, string, error) {
			attempt++
			got := &gatewayapi_v1.Gateway{}
			ok, err := f.Fetcher.Get(ctx, key, got)
			if err != nil {
				return false, "", err
			}
			if !ok {
				log.WithField("attempt", attempt).Info("waiting for gateway to exist")
				return false, "gateway does not exist yet", nil
			}
			gw = got
			if !check.GatewayProgrammed(got) {
				log.WithField("attempt", attempt).Info("waiting for gateway to be programmed")
				return false, "gateway has no Programmed: True condition", nil
			}
			if !check.GatewayHasAddress(got) {
				log.WithField("attempt", attempt).Info("waiting for gateway address")
				return false, "gateway has no status address", nil
			}
			return true, "", nil
		},
	})
	if err != nil {
		var timeout *poll.TimeoutError
		if errors.As(err, &timeout) && gw != nil {
			f.logGatewayStatus(gw)
		}
		return nil, err
	}
	return gw, nil
}

// WaitForDeploymentReady waits for all desired replicas of the named
// Deployment to become ready.
func (f *Framework) WaitForDeploymentReady(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	key := client.ObjectKey{Namespace: namespace, Name: name}
	log := f.Log.WithField("deployment", key.String())

	var deployment *appsv1.Deployment
	attempt := 0
	err := poll.Until(ctx, poll.Target{
		Name:     fmt.Sprintf("deployment %s to be ready", key),
		Interval: f.RetryInterval,
		Timeout:  f.RetryTimeout,
		Step: func(ctx context.Context) (bool, string, error) {
			attempt++
			got := &appsv1.Deployment{}
			ok, err := f.Fetcher.Get(ctx, key, got)
			if err != nil {
				return false, "", err
			}
			if !ok {
				log.WithField("attempt", attempt).Info("waiting for deployment to exist")
				return false, "deployment does not exist yet", nil
			}
			if !check.DeploymentReady(got) {
				log.WithField("attempt", attempt).Info("waiting for deployment replicas")
				return false, fmt.Sprintf("%d of %d replicas ready", got.Status.ReadyReplicas, desiredReplicas(got)), nil
			}
			deployment = got
			return true, "", nil
		},
	})
	if err != nil {
		return nil, err
	}
	return deployment, nil
}

// WaitForHTTPRouteAccepted waits for any parent gateway to accept the
// HTTPRoute.
func (f *Framework) WaitForHTTPRouteAccepted(ctx context.Context, namespace, name string) (*gatewayapi_v1.HTTPRoute, error) {
	key := client.ObjectKey{Namespace: namespace, Name: name}
	log := f.Log.WithField("httproute", key.String())

	var route *gatewayapi_v1.HTTPRoute
	attempt := 0
	err := poll.Until(ctx, poll.Target{
		Name:     fmt.Sprintf("httproute %s to be accepted", key),
		Interval: f.RetryInterval,
		Timeout:  f.RetryTimeout,
		Step: func(ctx context.Context) (bool, string, error) {
			attempt++
			got := &gatewayapi_v1.HTTPRoute{}
			ok, err := f.Fetcher.Get(ctx, key, got)
			if err != nil {
				return false, "", err
			}
			if !ok {
				log.WithField("attempt", attempt).Info("waiting for httproute to exist")
				return false, "httproute does not exist yet", nil
			}
			if !check.HTTPRouteAccepted(got) {
				log.WithField("attempt", attempt).Info("waiting for httproute acceptance")
				return false, "httproute has no Accepted: True parent condition", nil
			}
			route = got
			return true, "", nil
		},
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

func (f *Framework) logGatewayStatus(gw *gatewayapi_v1.Gateway) {
	log := f.Log.WithField("gateway", gw.Name)
	if len(gw.Status.Addresses) == 0 {
		log.Info("gateway status: no addresses")
	}
	for _, addr := range gw.Status.Addresses {
		log.WithField("address", addr.Value).Info("gateway status address")
	}
	for _, cond := range gw.Status.Conditions {
		log.WithFields(logrus.Fields{
			"type":    cond.Type,
			"status":  cond.Status,
			"reason":  cond.Reason,
			"message": cond.Message,
		}).Info("gateway status condition")
	}
}

func desiredReplicas(d *appsv1.Deployment) int32 {
	if d.Spec.Replicas == nil {
		return 0
	}
	return *d.Spec.Replicas
}
