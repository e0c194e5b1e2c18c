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

// Package verify assembles the tinylb verification scenario: cluster
// access, test fixtures, convergence waits, and the step pipeline
// that ties them together.
package verify

import (
	"fmt"
	"time"

	routev1 "github.com/openshift/api/route/v1"
	"github.com/sirupsen/logrus"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	kubescheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	crconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	gatewayapi_v1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/tinylb/verify/internal/fetch"
)

// Framework provides cluster access and helpers for verifying tinylb
// behavior end to end.
type Framework struct {
	// Client is a controller-runtime Kubernetes client.
	Client client.Client

	// Fetcher is the absent-aware accessor the wait helpers poll
	// through.
	Fetcher *fetch.Fetcher

	Log logrus.FieldLogger

	// RetryInterval is how often convergence waits re-check.
	RetryInterval time.Duration

	// RetryTimeout is how long a convergence wait may take before it
	// fails.
	RetryTimeout time.Duration
}

// Options configures cluster access for a Framework.
type Options struct {
	// Kubeconfig is an explicit kubeconfig path. Empty means the
	// standard loading rules (KUBECONFIG, then ~/.kube/config).
	Kubeconfig string

	// InCluster uses the pod service account instead of a kubeconfig.
	InCluster bool

	Log logrus.FieldLogger

	RetryInterval time.Duration
	RetryTimeout  time.Duration
}

// NewScheme returns a scheme covering every kind the suite touches:
// core and apps, Gateway API, OpenShift routes, and CRDs for
// prerequisite discovery.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	for _, add := range []func(*runtime.Scheme) error{
		kubescheme.AddToScheme,
		gatewayapi_v1.Install,
		routev1.AddToScheme,
		apiextensionsv1.AddToScheme,
	} {
		if err := add(scheme); err != nil {
			return nil, err
		}
	}
	return scheme, nil
}

// NewFramework builds a Framework against a live cluster.
func NewFramework(opts Options) (*Framework, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("loading cluster config: %w", err)
	}

	scheme, err := NewScheme()
	if err != nil {
		return nil, fmt.Errorf("building scheme: %w", err)
	}

	cli, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	interval := opts.RetryInterval
	if interval == 0 {
		interval = 2 * time.Second
	}
	timeout := opts.RetryTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Framework{
		Client:        cli,
		Fetcher:       fetch.New(cli),
		Log:           log,
		RetryInterval: interval,
		RetryTimeout:  timeout,
	}, nil
}

func loadConfig(opts Options) (*rest.Config, error) {
	if opts.InCluster {
		return rest.InClusterConfig()
	}
	if opts.Kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", opts.Kubeconfig)
	}
	return crconfig.GetConfig()
}
