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
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	gatewayapi_v1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/tinylb/verify/internal/names"
)

// EchoResponseText is the body the echo backend serves; the end-to-end
// probe asserts its presence in the response.
const EchoResponseText = "Hello from TinyLB Gateway API test!"

// Gateway returns the test Gateway fixture: an HTTP listener on 80 and
// a TLS passthrough listener on 443, both on the gateway's apps-crc
// hostname. Passthrough matters: it is the termination mode tinylb's
// routes use, so the TLS listener exercises the same path end to end.
func Gateway(namespace, name, gatewayClass string) *gatewayapi_v1.Gateway {
	hostname := gatewayapi_v1.Hostname(names.GatewayHostname(name))

	return &gatewayapi_v1.Gateway{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: gatewayapi_v1.GatewaySpec{
			GatewayClassName: gatewayapi_v1.ObjectName(gatewayClass),
			Listeners: []gatewayapi_v1.Listener{
				{
					Name:     "http",
					Hostname: &hostname,
					Port:     80,
					Protocol: gatewayapi_v1.HTTPProtocolType,
				},
				{
					Name:     "https",
					Hostname: &hostname,
					Port:     443,
					Protocol: gatewayapi_v1.TLSProtocolType,
					TLS: &gatewayapi_v1.GatewayTLSConfig{
						Mode: ptr.To(gatewayapi_v1.TLSModePassthrough),
					},
				},
			},
		},
	}
}

// LoadBalancerService returns the LoadBalancer Service a gateway
// implementation would create for the Gateway. The suite creates it
// itself so the scenario does not depend on istio actually running;
// tinylb only looks at the Service type and status.
func LoadBalancerService(namespace, name, gatewayName string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: corev1.ServiceSpec{
			Type: corev1.ServiceTypeLoadBalancer,
			Ports: []corev1.ServicePort{
				{Name: "http", Port: 80},
				{Name: "https", Port: 443},
			},
			Selector: map[string]string{"app": gatewayName},
		},
	}
}

// EchoBackend returns the echo Deployment and its ClusterIP Service,
// the workload the HTTPRoute forwards to.
func EchoBackend(namespace, name string) (*appsv1.Deployment, *corev1.Service) {
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": name},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app": name},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "echo-server",
							Image: "hashicorp/http-echo:0.2.3",
							Args:  []string{"-text=" + EchoResponseText},
							Ports: []corev1.ContainerPort{
								{ContainerPort: 5678},
							},
						},
					},
				},
			},
		},
	}

	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": name},
			Ports: []corev1.ServicePort{
				{
					Name:       "http",
					Port:       8080,
					TargetPort: intstr.FromInt(5678),
				},
			},
		},
	}

	return deployment, service
}

// HTTPRoute returns a route binding the gateway's hostname to the
// echo backend on its service port.
func HTTPRoute(namespace, name, gatewayName, backendService string) *gatewayapi_v1.HTTPRoute {
	return &gatewayapi_v1.HTTPRoute{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: gatewayapi_v1.HTTPRouteSpec{
			CommonRouteSpec: gatewayapi_v1.CommonRouteSpec{
				ParentRefs: []gatewayapi_v1.ParentReference{
					{Name: gatewayapi_v1.ObjectName(gatewayName)},
				},
			},
			Hostnames: []gatewayapi_v1.Hostname{
				gatewayapi_v1.Hostname(names.GatewayHostname(gatewayName)),
			},
			Rules: []gatewayapi_v1.HTTPRouteRule{
				{
					Matches: []gatewayapi_v1.HTTPRouteMatch{
						{
							Path: &gatewayapi_v1.HTTPPathMatch{
								Type:  ptr.To(gatewayapi_v1.PathMatchPathPrefix),
								Value: ptr.To("/"),
							},
						},
					},
					BackendRefs: []gatewayapi_v1.HTTPBackendRef{
						{
							BackendRef: gatewayapi_v1.BackendRef{
								BackendObjectReference: gatewayapi_v1.BackendObjectReference{
									Name: gatewayapi_v1.ObjectName(backendService),
									Port: ptr.To(gatewayapi_v1.PortNumber(8080)),
								},
							},
						},
					},
				},
			},
		},
	}
}

// Namespace returns the namespace fixture the scenario runs in.
func Namespace(name string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"tinylb-verify": "true"},
		},
	}
}
